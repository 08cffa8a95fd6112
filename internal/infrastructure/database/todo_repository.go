package database

import (
	"context"

	domain_todo "github.com/hijjiri/todo-api/internal/domain/todo"
)

const (
	insertTodoSQL = "INSERT INTO todos (title, priority, status) VALUES (?, ?, ?)"
	listTodosSQL  = "SELECT id, title, priority, status FROM todos ORDER BY id"
	updateTodoSQL = "UPDATE todos SET title = ?, priority = ?, status = ? WHERE id = ?"
	deleteTodoSQL = "DELETE FROM todos WHERE id = ?"
)

type TodoRepository struct {
	pool *Pool
}

var _ domain_todo.Repository = (*TodoRepository)(nil)

func NewTodoRepository(pool *Pool) *TodoRepository {
	return &TodoRepository{pool: pool}
}

// Create は domain の Todo を受け取り、DBにINSERTしてIDを付けて返す
func (r *TodoRepository) Create(ctx context.Context, t *domain_todo.Todo) (*domain_todo.Todo, error) {
	res, err := r.pool.Exec(ctx, insertTodoSQL, t.Title, t.Priority, t.Status)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	t.ID = id
	return t, nil
}

// List は DB から全件取得し、domain の Todo スライスで返す（0 件なら空スライス）
func (r *TodoRepository) List(ctx context.Context) ([]*domain_todo.Todo, error) {
	rows, err := r.pool.Query(ctx, listTodosSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]*domain_todo.Todo, 0)
	for rows.Next() {
		var t domain_todo.Todo
		if err := rows.Scan(&t.ID, &t.Title, &t.Priority, &t.Status); err != nil {
			return nil, err
		}
		todos = append(todos, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return todos, nil
}

// Update は一致した行があれば true を返す
func (r *TodoRepository) Update(ctx context.Context, t *domain_todo.Todo) (bool, error) {
	res, err := r.pool.Exec(ctx, updateTodoSQL, t.Title, t.Priority, t.Status, t.ID)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Delete は削除件数 > 0 なら true を返す
func (r *TodoRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.pool.Exec(ctx, deleteTodoSQL, id)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
