package todo_usecase

import (
	"context"
	"errors"
	"fmt"

	domain_todo "github.com/hijjiri/todo-api/internal/domain/todo"

	"go.uber.org/zap"
)

// ===== エラー定数（Handler側からも使う） =====

var (
	ErrInvalidID = domain_todo.ErrInvalidID
	ErrNotFound  = errors.New("todo not found")
)

// ===== 外部に公開する Usecase インターフェース =====

type Usecase interface {
	Create(ctx context.Context, title, priority, status string) (*domain_todo.Todo, error)
	List(ctx context.Context) ([]*domain_todo.Todo, error)
	Update(ctx context.Context, id int64, title, priority, status string) (*domain_todo.Todo, error)
	Delete(ctx context.Context, id int64) error
}

// ===== 実装 =====

type usecase struct {
	repo   domain_todo.Repository
	logger *zap.Logger
}

func New(repo domain_todo.Repository, logger *zap.Logger) Usecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &usecase{repo: repo, logger: logger}
}

// Create ユースケース
func (u *usecase) Create(ctx context.Context, title, priority, status string) (*domain_todo.Todo, error) {
	t := domain_todo.NewTodo(title, priority, status)

	created, err := u.repo.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return created, nil
}

// List ユースケース
// 0 件でもエラーにはしない（JSON で null ではなく [] を返すため nil は返さない）
func (u *usecase) List(ctx context.Context) ([]*domain_todo.Todo, error) {
	list, err := u.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	if list == nil {
		list = []*domain_todo.Todo{}
	}
	return list, nil
}

// Update ユースケース（title / priority / status を丸ごと上書き）
func (u *usecase) Update(ctx context.Context, id int64, title, priority, status string) (*domain_todo.Todo, error) {
	if err := domain_todo.ValidateID(id); err != nil {
		return nil, err
	}

	t := domain_todo.NewTodo(title, priority, status)
	t.ID = id

	ok, err := u.repo.Update(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("update todo %d: %w", id, err)
	}
	if !ok {
		u.logger.Debug("update target not found", zap.Int64("id", id))
		return nil, ErrNotFound
	}
	return t, nil
}

// Delete ユースケース
func (u *usecase) Delete(ctx context.Context, id int64) error {
	if err := domain_todo.ValidateID(id); err != nil {
		return err
	}

	ok, err := u.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	if !ok {
		u.logger.Debug("delete target not found", zap.Int64("id", id))
		return ErrNotFound
	}
	return nil
}
