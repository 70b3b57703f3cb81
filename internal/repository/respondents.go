package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
)

// CreateRespondent 插入一份问卷，排斥关系中的 ID 必须已经存在于同一个计划中
func (r *Repository) CreateRespondent(respondent *domain.Respondent) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := insertRespondent(ctx, tx, respondent); err != nil {
		return err
	}
	if err := insertExclusions(ctx, tx, respondent.ID, respondent.Exclusions); err != nil {
		return err
	}

	return tx.Commit()
}

// CreateRespondents 一次性导入整个计划的问卷
// 传入的人员 ID 只是临时编号，排斥关系引用这些临时编号，插入后会被替换为数据库中的 ID
func (r *Repository) CreateRespondents(planID int64, respondents []*domain.Respondent) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	idMap := make(map[int64]int64, len(respondents)) // 临时 ID -> 数据库 ID
	for _, respondent := range respondents {
		tempID := respondent.ID
		respondent.PlanID = planID
		if err := insertRespondent(ctx, tx, respondent); err != nil {
			return err
		}
		idMap[tempID] = respondent.ID
	}

	// 所有人都插入后才能写入排斥关系
	for _, respondent := range respondents {
		exclusions := make([]int64, len(respondent.Exclusions))
		for i, tempID := range respondent.Exclusions {
			id, exists := idMap[tempID]
			if !exists {
				return fmt.Errorf("排斥的人员 %d 不在导入的数据中", tempID)
			}
			exclusions[i] = id
		}
		respondent.Exclusions = exclusions

		if err := insertExclusions(ctx, tx, respondent.ID, exclusions); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertRespondent(ctx context.Context, tx *sql.Tx, respondent *domain.Respondent) error {
	query := `
		INSERT INTO respondents (plan_id, name, email)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, version
	`
	if err := tx.QueryRowContext(ctx, query, respondent.PlanID, respondent.Name, respondent.Email).Scan(&respondent.ID, &respondent.CreatedAt, &respondent.Version); err != nil {
		return err
	}

	for _, rating := range respondent.Ratings {
		query = `
			INSERT INTO respondent_ratings (respondent_id, group_id, rating)
			VALUES ($1, $2, $3)
		`
		if _, err := tx.ExecContext(ctx, query, respondent.ID, rating.GroupID, rating.Rating); err != nil {
			return err
		}
	}

	return nil
}

func insertExclusions(ctx context.Context, tx *sql.Tx, respondentID int64, exclusions []int64) error {
	for _, excludedID := range exclusions {
		query := `
			INSERT INTO respondent_exclusions (respondent_id, excluded_respondent_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`
		if _, err := tx.ExecContext(ctx, query, respondentID, excludedID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) GetRespondentsByPlanID(planID int64) ([]*domain.Respondent, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		SELECT
			r.id,
			r.name,
			r.email,
			r.created_at,
			r.version,
			rr.group_id,
			rr.rating
		FROM respondents r
		LEFT JOIN respondent_ratings rr ON r.id = rr.respondent_id
		WHERE r.plan_id = $1
		ORDER BY r.id, rr.group_id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	respondents := make([]*domain.Respondent, 0)
	respondentsMap := make(map[int64]*domain.Respondent)

	for rows.Next() {
		respondent := &domain.Respondent{PlanID: planID}
		var groupID sql.NullInt64
		var rating sql.NullInt32

		dst := []any{&respondent.ID, &respondent.Name, &respondent.Email, &respondent.CreatedAt, &respondent.Version, &groupID, &rating}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		if existing, exists := respondentsMap[respondent.ID]; exists {
			respondent = existing
		} else {
			respondent.Ratings = make([]domain.RespondentRating, 0)
			respondent.Exclusions = make([]int64, 0)
			respondentsMap[respondent.ID] = respondent
			respondents = append(respondents, respondent)
		}

		if !groupID.Valid {
			continue
		}

		respondent.Ratings = append(respondent.Ratings, domain.RespondentRating{
			GroupID: groupID.Int64,
			Rating:  rating.Int32,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 评分和排斥关系分开查询，避免两张表 JOIN 后行数相乘
	query = `
		SELECT re.respondent_id, re.excluded_respondent_id
		FROM respondent_exclusions re
		JOIN respondents r ON r.id = re.respondent_id
		WHERE r.plan_id = $1
		ORDER BY re.respondent_id, re.excluded_respondent_id
	`

	exclusionRows, err := r.dbpool.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer exclusionRows.Close()

	for exclusionRows.Next() {
		var respondentID, excludedID int64
		if err := exclusionRows.Scan(&respondentID, &excludedID); err != nil {
			return nil, err
		}
		if respondent, exists := respondentsMap[respondentID]; exists {
			respondent.Exclusions = append(respondent.Exclusions, excludedID)
		}
	}

	if err := exclusionRows.Err(); err != nil {
		return nil, err
	}

	return respondents, nil
}

func (r *Repository) GetRespondentByID(id int64) (*domain.Respondent, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	respondent := &domain.Respondent{
		ID:         id,
		Ratings:    make([]domain.RespondentRating, 0),
		Exclusions: make([]int64, 0),
	}

	query := `SELECT plan_id, name, email, created_at, version FROM respondents WHERE id = $1`
	dst := []any{&respondent.PlanID, &respondent.Name, &respondent.Email, &respondent.CreatedAt, &respondent.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	rows, err := r.dbpool.QueryContext(ctx, `SELECT group_id, rating FROM respondent_ratings WHERE respondent_id = $1 ORDER BY group_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rating domain.RespondentRating
		if err := rows.Scan(&rating.GroupID, &rating.Rating); err != nil {
			return nil, err
		}
		respondent.Ratings = append(respondent.Ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	exclusionRows, err := r.dbpool.QueryContext(ctx, `SELECT excluded_respondent_id FROM respondent_exclusions WHERE respondent_id = $1 ORDER BY excluded_respondent_id`, id)
	if err != nil {
		return nil, err
	}
	defer exclusionRows.Close()

	for exclusionRows.Next() {
		var excludedID int64
		if err := exclusionRows.Scan(&excludedID); err != nil {
			return nil, err
		}
		respondent.Exclusions = append(respondent.Exclusions, excludedID)
	}

	if err := exclusionRows.Err(); err != nil {
		return nil, err
	}

	return respondent, nil
}

// ReplaceRespondentExclusions 覆盖一个人的排斥列表
func (r *Repository) ReplaceRespondentExclusions(respondent *domain.Respondent) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM respondent_exclusions WHERE respondent_id = $1`, respondent.ID); err != nil {
		return err
	}
	if err := insertExclusions(ctx, tx, respondent.ID, respondent.Exclusions); err != nil {
		return err
	}

	query := `UPDATE respondents SET version = version + 1 WHERE id = $1 AND version = $2 RETURNING version`
	if err := tx.QueryRowContext(ctx, query, respondent.ID, respondent.Version).Scan(&respondent.Version); err != nil {
		return err
	}

	return tx.Commit()
}

// 评分和排斥关系通过外键级联删除，包括其他人指向他的排斥
func (r *Repository) DeleteRespondent(id int64) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, `DELETE FROM respondents WHERE id = $1`, id)
	return err
}
