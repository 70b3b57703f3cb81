package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
)

// InsertAllocationResult 保存分组结果，每个计划只保留最新的一份
func (r *Repository) InsertAllocationResult(result *domain.AllocationResult) error {
	parameters, err := json.Marshal(result.Parameters)
	if err != nil {
		return err
	}

	trajectory, err := json.Marshal(result.Trajectory)
	if err != nil {
		return err
	}

	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 先将之前的分组结果删除
	if _, err := tx.ExecContext(ctx, `DELETE FROM allocation_results WHERE plan_id = $1`, result.PlanID); err != nil {
		return err
	}

	query := `
		INSERT INTO allocation_results (
			plan_id,
			run_id,
			heuristic,
			total_rating,
			violations,
			initial_heuristic,
			iterations,
			accepted_moves,
			parameters,
			trajectory
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, version
	`

	args := []any{
		result.PlanID,
		result.RunID,
		result.Heuristic,
		result.TotalRating,
		result.Violations,
		result.InitialHeuristic,
		result.Iterations,
		result.AcceptedMoves,
		string(parameters),
		string(trajectory),
	}

	if err := tx.QueryRowContext(ctx, query, args...).Scan(&result.ID, &result.CreatedAt, &result.Version); err != nil {
		return err
	}

	for _, item := range result.Items {
		query := `
			INSERT INTO allocation_result_items (result_id, respondent_id, group_id)
			VALUES ($1, $2, $3)
		`
		if _, err := tx.ExecContext(ctx, query, result.ID, item.RespondentID, item.GroupID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) GetAllocationResultByPlanID(planID int64) (*domain.AllocationResult, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		SELECT
			id,
			run_id,
			heuristic,
			total_rating,
			violations,
			initial_heuristic,
			iterations,
			accepted_moves,
			parameters,
			trajectory,
			published_at,
			created_at,
			version
		FROM allocation_results
		WHERE plan_id = $1
	`

	result := &domain.AllocationResult{PlanID: planID}

	var parameters, trajectory []byte
	var publishedAt sql.NullTime

	dst := []any{
		&result.ID,
		&result.RunID,
		&result.Heuristic,
		&result.TotalRating,
		&result.Violations,
		&result.InitialHeuristic,
		&result.Iterations,
		&result.AcceptedMoves,
		&parameters,
		&trajectory,
		&publishedAt,
		&result.CreatedAt,
		&result.Version,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, planID).Scan(dst...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(parameters, &result.Parameters); err != nil {
		return nil, err
	}
	if len(trajectory) > 0 {
		if err := json.Unmarshal(trajectory, &result.Trajectory); err != nil {
			return nil, err
		}
	}
	if publishedAt.Valid {
		result.PublishedAt = &publishedAt.Time
	}

	rows, err := r.dbpool.QueryContext(ctx, `SELECT respondent_id, group_id FROM allocation_result_items WHERE result_id = $1 ORDER BY respondent_id`, result.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result.Items = make([]domain.AllocationResultItem, 0)
	for rows.Next() {
		var item domain.AllocationResultItem
		if err := rows.Scan(&item.RespondentID, &item.GroupID); err != nil {
			return nil, err
		}
		result.Items = append(result.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// MarkAllocationResultPublished 记录结果已经通过邮件发布
func (r *Repository) MarkAllocationResultPublished(result *domain.AllocationResult) error {
	query := `
		UPDATE allocation_results
		SET
			published_at = NOW(),
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING published_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	var publishedAt sql.NullTime
	if err := r.dbpool.QueryRowContext(ctx, query, result.ID, result.Version).Scan(&publishedAt, &result.Version); err != nil {
		return err
	}
	if publishedAt.Valid {
		result.PublishedAt = &publishedAt.Time
	}

	return nil
}
