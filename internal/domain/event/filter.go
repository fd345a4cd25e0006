package event

import "strings"

// CategoryAll はカテゴリで絞り込まないことを表す
const CategoryAll = "all"

// Filter は検索語とカテゴリによる絞り込み条件
// 検索語はタイトルまたは説明に対する大文字小文字を区別しない部分一致、
// カテゴリは完全一致（空文字または "all" は全件）で、両者はANDで結合する
type Filter struct {
	Search   string
	Category string
}

// IsZero は絞り込み条件が指定されていないかを返す
func (f Filter) IsZero() bool {
	return f.Search == "" && (f.Category == "" || f.Category == CategoryAll)
}

// Match はフィールド値が条件に一致するかを判定する
func (f Filter) Match(title, description, category string) bool {
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(title), q) && !strings.Contains(strings.ToLower(description), q) {
			return false
		}
	}
	if f.Category != "" && f.Category != CategoryAll && f.Category != category {
		return false
	}
	return true
}

// Apply は順序を保ったまま条件に一致するイベントを返す
func (f Filter) Apply(events []*Event) []*Event {
	if f.IsZero() {
		return events
	}
	result := make([]*Event, 0, len(events))
	for _, e := range events {
		if f.Match(e.Title, e.Description, string(e.Category)) {
			result = append(result, e)
		}
	}
	return result
}
