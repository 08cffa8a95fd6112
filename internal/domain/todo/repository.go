package todo

import "context"

// Repository は Todo の永続化ポート。
// Update / Delete の bool は「対象行が存在したか」（affected rows > 0）。
type Repository interface {
	Create(ctx context.Context, t *Todo) (*Todo, error)
	List(ctx context.Context) ([]*Todo, error)
	Update(ctx context.Context, t *Todo) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}
