package repository

import (
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
)

// CreateAllocationPlan 在同一个事务中插入计划和它的所有组，组的 ID 会被回填
func (r *Repository) CreateAllocationPlan(plan *domain.AllocationPlan) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO allocation_plans (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at, version
	`
	if err := tx.QueryRowContext(ctx, query, plan.Name, plan.Description).Scan(&plan.ID, &plan.CreatedAt, &plan.Version); err != nil {
		return err
	}

	for i := range plan.Groups {
		query = `
			INSERT INTO allocation_plan_groups (plan_id, name)
			VALUES ($1, $2)
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, query, plan.ID, plan.Groups[i].Name).Scan(&plan.Groups[i].ID); err != nil {
			return err
		}
		plan.Groups[i].PlanID = plan.ID
	}

	return tx.Commit()
}

func (r *Repository) GetAllAllocationPlans() ([]*domain.AllocationPlan, error) {
	query := `
		SELECT
			p.id,
			p.name,
			p.description,
			p.created_at,
			p.version,
			g.id,
			g.name
		FROM allocation_plans p
		LEFT JOIN allocation_plan_groups g ON p.id = g.plan_id
		ORDER BY p.id, g.id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]*domain.AllocationPlan, 0)
	plansMap := make(map[int64]*domain.AllocationPlan)

	for rows.Next() {
		var row struct {
			ID          int64
			Name        string
			Description string
			CreatedAt   time.Time
			Version     int32
			GroupID     sql.NullInt64
			GroupName   sql.NullString
		}

		dst := []any{&row.ID, &row.Name, &row.Description, &row.CreatedAt, &row.Version, &row.GroupID, &row.GroupName}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		plan, exists := plansMap[row.ID]
		if !exists {
			plan = &domain.AllocationPlan{
				ID:          row.ID,
				Name:        row.Name,
				Description: row.Description,
				Groups:      make([]domain.Group, 0),
				CreatedAt:   row.CreatedAt,
				Version:     row.Version,
			}
			plansMap[row.ID] = plan
			plans = append(plans, plan)
		}

		// 没有任何组的计划在业务上不存在，这里仍然兼容
		if !row.GroupID.Valid {
			continue
		}

		plan.Groups = append(plan.Groups, domain.Group{
			ID:     row.GroupID.Int64,
			PlanID: row.ID,
			Name:   row.GroupName.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return plans, nil
}

func (r *Repository) GetAllocationPlanByID(id int64) (*domain.AllocationPlan, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	plan := &domain.AllocationPlan{ID: id}

	query := `SELECT name, description, created_at, version FROM allocation_plans WHERE id = $1`
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(&plan.Name, &plan.Description, &plan.CreatedAt, &plan.Version); err != nil {
		return nil, err
	}

	query = `SELECT id, name FROM allocation_plan_groups WHERE plan_id = $1 ORDER BY id`
	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plan.Groups = make([]domain.Group, 0)
	for rows.Next() {
		group := domain.Group{PlanID: id}
		if err := rows.Scan(&group.ID, &group.Name); err != nil {
			return nil, err
		}
		plan.Groups = append(plan.Groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return plan, nil
}

// 组在创建后不能修改，否则已经提交的评分会失效
func (r *Repository) UpdateAllocationPlan(plan *domain.AllocationPlan) error {
	query := `
		UPDATE allocation_plans
		SET
			name = $1,
			description = $2,
			version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, plan.Name, plan.Description, plan.ID, plan.Version).Scan(&plan.Version)
}

// 组、问卷和分组结果通过外键级联删除
func (r *Repository) DeleteAllocationPlan(id int64) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, `DELETE FROM allocation_plans WHERE id = $1`, id)
	return err
}
