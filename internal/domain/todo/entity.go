package todo

import "errors"

// Priority / Status の既定値。
// 値そのものは列挙として扱うが、保存時に検証はしない。
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	StatusNotStarted = "not started"
	StatusInProgress = "in progress"
	StatusDone       = "done"

	DefaultPriority = PriorityMedium
	DefaultStatus   = StatusNotStarted
)

// Todo は Todo 集約のルートエンティティ。
type Todo struct {
	ID       int64
	Title    string
	Priority string
	Status   string
}

// ---- ドメインエラー（sentinel error） ----

var (
	// ID が 0 以下など不正なときに使う共通エラー。
	ErrInvalidID = errors.New("todo id must be positive")
)

// ---- ファクトリ / バリデーション ----

// NewTodo は「新規作成 / 全体上書き用」のコンストラクタ。
// priority / status が未指定（空文字）なら既定値で埋める。
// title は空でも受け付ける（従来どおり寛容な挙動）。
func NewTodo(title, priority, status string) *Todo {
	t := &Todo{
		Title:    title,
		Priority: priority,
		Status:   status,
	}
	t.ApplyDefaults()
	return t
}

// ApplyDefaults は不変条件「priority / status は必ず非空」を満たすようにする。
func (t *Todo) ApplyDefaults() {
	if isAbsent(t.Priority) {
		t.Priority = DefaultPriority
	}
	if isAbsent(t.Status) {
		t.Status = DefaultStatus
	}
}

// isAbsent は「未指定 or 空文字」だけを欠損とみなす。
// JSON の欠落 / null はデコード時点で "" になっている。
func isAbsent(s string) bool {
	return s == ""
}

// ValidateID は ID まわりの共通バリデーション。
func ValidateID(id int64) error {
	if id <= 0 {
		return ErrInvalidID
	}
	return nil
}
