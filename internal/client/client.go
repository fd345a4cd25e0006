package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxErrorBody はエラー応答として読み込む本文の上限
const maxErrorBody = 64 << 10

// Event はAPIが返すイベント
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        time.Time  `json:"date"`
	Status      string     `json:"status"`
	Category    string     `json:"category"`
	Image       *ImageInfo `json:"image,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ImageInfo は添付画像のメタデータ
type ImageInfo struct {
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// ImageUpload は送信する画像ファイル
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Image は画像エンドポイントから取得した画像
type Image struct {
	ContentType string
	Data        []byte
}

// EventInput は作成・更新で送信するフィールド
// 更新時もすべてのフィールドを送信する（空の Status / Category は省略）
type EventInput struct {
	Title       string
	Description string
	Date        string
	Status      string
	Category    string
	Image       *ImageUpload
	Version     *int // 指定時のみサーバーでバージョンを照合する
}

// ListOptions はサーバー側の絞り込み条件
type ListOptions struct {
	Search   string
	Category string
}

// Client はイベントAPIのHTTPクライアント
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option は Client の設定
type Option func(*Client)

// WithHTTPClient は使用する http.Client を差し替える
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New は baseURL（例: http://localhost:5000）に接続する Client を作成する
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func eventPath(id string) string {
	return "/api/events/" + url.PathEscape(id)
}

// ImageURL は画像エンドポイントの絶対URLを返す
func (c *Client) ImageURL(id string) string {
	return c.baseURL + eventPath(id) + "/image"
}

func (c *Client) ListEvents(ctx context.Context, opts ListOptions) ([]Event, error) {
	q := url.Values{}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	path := "/api/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var events []Event
	if err := c.doJSON(ctx, http.MethodGet, path, nil, "", &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) GetEvent(ctx context.Context, id string) (*Event, error) {
	var e Event
	if err := c.doJSON(ctx, http.MethodGet, eventPath(id), nil, "", &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) CreateEvent(ctx context.Context, input EventInput) (*Event, error) {
	body, contentType, err := encodeEventForm(input)
	if err != nil {
		return nil, err
	}
	var e Event
	if err := c.doJSON(ctx, http.MethodPost, "/api/events", body, contentType, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) UpdateEvent(ctx context.Context, id string, input EventInput) (*Event, error) {
	body, contentType, err := encodeEventForm(input)
	if err != nil {
		return nil, err
	}
	var e Event
	if err := c.doJSON(ctx, http.MethodPut, eventPath(id), body, contentType, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, eventPath(id), nil, "", nil)
}

// GetImage は画像本体を取得する
func (c *Client) GetImage(ctx context.Context, id string) (*Image, error) {
	resp, err := c.do(ctx, http.MethodGet, eventPath(id)+"/image", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return &Image{ContentType: resp.Header.Get("Content-Type"), Data: data}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

// Login は管理者の認証情報を確認し、認証されたユーザー名を返す
// 認証失敗は 401 の *APIError（"Invalid credentials"）になる
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	payload, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	var resp loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", bytes.NewReader(payload), "application/json", &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &APIError{StatusCode: http.StatusUnauthorized, Message: resp.Message}
	}
	return resp.Username, nil
}

// Health はサーバーの死活を確認する
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/api/health", nil, "", nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスの解析に失敗: %w", err)
	}
	return nil
}

// do はリクエストを送信する。4xx/5xx は *APIError に変換して本文を閉じる
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: body.Message}
}

// encodeEventForm はイベントの入力を multipart/form-data に変換する
func encodeEventForm(input EventInput) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ key, value string }{
		{"title", input.Title},
		{"description", input.Description},
		{"date", input.Date},
	}
	if input.Status != "" {
		fields = append(fields, struct{ key, value string }{"status", input.Status})
	}
	if input.Category != "" {
		fields = append(fields, struct{ key, value string }{"category", input.Category})
	}
	if input.Version != nil {
		fields = append(fields, struct{ key, value string }{"version", strconv.Itoa(*input.Version)})
	}
	for _, f := range fields {
		if err := w.WriteField(f.key, f.value); err != nil {
			return nil, "", fmt.Errorf("フォームの作成に失敗: %w", err)
		}
	}

	if img := input.Image; img != nil {
		filename := img.Filename
		if filename == "" {
			filename = "image"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, escapeQuotes(filename)))
		h.Set("Content-Type", img.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("フォームの作成に失敗: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("フォームの作成に失敗: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("フォームの作成に失敗: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
