package client

import (
	"context"
	"time"
)

// Tab は管理画面のタブ
type Tab string

const (
	TabEdit   Tab = "edit"   // 作成・編集フォーム
	TabManage Tab = "manage" // 一覧と削除
)

// EventWriter は管理画面が使う更新系の操作
type EventWriter interface {
	CreateEvent(ctx context.Context, input EventInput) (*Event, error)
	UpdateEvent(ctx context.Context, id string, input EventInput) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ImageURL(id string) string
}

// AdminView は管理画面の状態
//
// 編集対象がない状態で送信すると作成し、フォームを空にして作成タブに留まる。
// 編集中に送信すると更新し、一覧タブに戻る。
// 1つのゴルーチンから操作することを前提とする。
type AdminView struct {
	api  EventWriter
	list *EventList
	now  func() time.Time

	tab       Tab
	editing   *Event
	form      EventForm
	formErrs  FormErrors
	submitErr error
}

func NewAdminView(api EventWriter, list *EventList) *AdminView {
	return &AdminView{
		api:  api,
		list: list,
		now:  time.Now,
		tab:  TabEdit,
		form: NewEventForm(),
	}
}

func (v *AdminView) Tab() Tab {
	return v.tab
}

// SetTab はタブを切り替える。編集状態は保持する
func (v *AdminView) SetTab(tab Tab) {
	v.tab = tab
}

// Editing は編集中のイベントを返す。作成モードでは nil
func (v *AdminView) Editing() *Event {
	return v.editing
}

func (v *AdminView) Form() EventForm {
	return v.form
}

// SetForm は入力中のフォームを置き換える
func (v *AdminView) SetForm(f EventForm) {
	v.form = f
}

// SelectImage は画像を検証してフォームに設定する
// 不正な画像は設定せず、エラーメッセージを image に保持する
func (v *AdminView) SelectImage(img *ImageUpload) bool {
	if msg := ValidateImage(img); msg != "" {
		if v.formErrs == nil {
			v.formErrs = FormErrors{}
		}
		v.formErrs["image"] = msg
		return false
	}
	v.form.Image = img
	delete(v.formErrs, "image")
	return true
}

// FormErrors は直近の入力チェックの結果を返す
func (v *AdminView) FormErrors() FormErrors {
	return v.formErrs
}

// SubmitError は直近の送信で表示するメッセージを返す
func (v *AdminView) SubmitError() string {
	return UserMessage(v.submitErr)
}

// Edit はイベントを編集対象にし、フォームに値を入れて編集タブに切り替える
func (v *AdminView) Edit(e Event) {
	v.editing = &e
	v.form = FormFromEvent(e, v.api.ImageURL(e.ID))
	v.formErrs = nil
	v.submitErr = nil
	v.tab = TabEdit
}

// CancelEdit は変更せずに一覧タブに戻る
func (v *AdminView) CancelEdit() {
	v.resetForm()
	v.tab = TabManage
}

// ClearForm は編集中ならキャンセルし、作成中ならフォームを空にする
func (v *AdminView) ClearForm() {
	if v.editing != nil {
		v.CancelEdit()
		return
	}
	v.resetForm()
}

func (v *AdminView) resetForm() {
	v.editing = nil
	v.form = NewEventForm()
	v.formErrs = nil
	v.submitErr = nil
}

// Submit はフォームを検証して作成または更新を行う
// 入力エラーは FormErrors、サーバーや通信のエラーはそのまま返す
func (v *AdminView) Submit(ctx context.Context) error {
	v.submitErr = nil
	if errs := v.form.Validate(v.now()); errs != nil {
		v.formErrs = errs
		return errs
	}
	v.formErrs = nil

	if v.editing != nil {
		updated, err := v.api.UpdateEvent(ctx, v.editing.ID, v.form.Input())
		if err != nil {
			v.submitErr = err
			return err
		}
		v.list.Updated(*updated)
		v.resetForm()
		v.tab = TabManage
		return nil
	}

	created, err := v.api.CreateEvent(ctx, v.form.Input())
	if err != nil {
		v.submitErr = err
		return err
	}
	v.list.Added(*created)
	v.resetForm()
	return nil
}

// Delete はサーバーで削除が確定した後に一覧から取り除く
func (v *AdminView) Delete(ctx context.Context, id string) error {
	if err := v.api.DeleteEvent(ctx, id); err != nil {
		v.submitErr = err
		return err
	}
	v.list.Removed(id)
	if v.editing != nil && v.editing.ID == id {
		v.resetForm()
	}
	return nil
}
