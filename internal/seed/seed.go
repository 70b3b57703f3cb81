package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/repository"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/utils"
)

// 问卷表格中的特殊列，其余的列都是组名
const (
	NameHeader       = "Name"
	EmailHeader      = "Email"
	ExclusionsHeader = "Exclusions"
)

// 排斥列中多个名字之间的分隔符
const exclusionSeparator = ";"

var headerAliases = map[string]string{
	"name":       NameHeader,
	"姓名":         NameHeader,
	"email":      EmailHeader,
	"邮箱":         EmailHeader,
	"exclusions": ExclusionsHeader,
	"排斥":         ExclusionsHeader,
}

// ResponseSheet 是一张问卷表格的内容
// 组和人员使用从 1 开始的临时 ID，排斥关系引用人员的临时 ID
type ResponseSheet struct {
	Plan        domain.AllocationPlan
	Respondents []*domain.Respondent
}

func canonicalHeader(header string) string {
	header = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	if alias, ok := headerAliases[strings.ToLower(header)]; ok {
		return alias
	}
	return header
}

// ReadResponses 读取形如 Name,<组1>,...,<组g>[,Exclusions][,Email] 的表格
func ReadResponses(r io.Reader) (*ResponseSheet, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("表格为空")
		}
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}

	nameColumn, emailColumn, exclusionsColumn := -1, -1, -1
	sheet := &ResponseSheet{}
	groupColumns := make([]int, 0, len(headers))
	seenGroups := make(map[string]bool)

	for i, header := range headers {
		switch canonicalHeader(header) {
		case NameHeader:
			nameColumn = i
		case EmailHeader:
			emailColumn = i
		case ExclusionsHeader:
			exclusionsColumn = i
		default:
			name := strings.TrimSpace(header)
			if name == "" {
				return nil, fmt.Errorf("第 %d 列的表头为空", i+1)
			}
			if seenGroups[name] {
				return nil, fmt.Errorf("组名 %s 重复", name)
			}
			seenGroups[name] = true
			groupColumns = append(groupColumns, i)
			sheet.Plan.Groups = append(sheet.Plan.Groups, domain.Group{
				ID:   int64(len(sheet.Plan.Groups) + 1),
				Name: name,
			})
		}
	}

	if nameColumn < 0 {
		return nil, errors.New("没有找到 Name 列")
	}
	if len(groupColumns) == 0 {
		return nil, errors.New("没有找到任何组")
	}

	ids := make(map[string]int64)
	exclusionNames := make(map[int64][]string)

	for line := 2; ; line++ {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("读取第 %d 行失败: %w", line, err)
		}

		name := strings.TrimSpace(row[nameColumn])
		if name == "" {
			return nil, fmt.Errorf("第 %d 行的姓名为空", line)
		}
		if _, exists := ids[name]; exists {
			return nil, fmt.Errorf("第 %d 行的姓名 %s 重复", line, name)
		}

		respondent := &domain.Respondent{
			ID:         int64(len(sheet.Respondents) + 1),
			Name:       name,
			Ratings:    make([]domain.RespondentRating, len(groupColumns)),
			Exclusions: make([]int64, 0),
		}
		ids[name] = respondent.ID

		for g, column := range groupColumns {
			value, err := strconv.ParseInt(strings.TrimSpace(row[column]), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("第 %d 行 %s 的评分 %q 不是整数", line, sheet.Plan.Groups[g].Name, row[column])
			}
			respondent.Ratings[g] = domain.RespondentRating{
				GroupID: sheet.Plan.Groups[g].ID,
				Rating:  int32(value),
			}
		}

		if emailColumn >= 0 {
			respondent.Email = strings.TrimSpace(row[emailColumn])
		}
		if exclusionsColumn >= 0 {
			for _, excluded := range strings.Split(row[exclusionsColumn], exclusionSeparator) {
				if excluded = strings.TrimSpace(excluded); excluded != "" {
					exclusionNames[respondent.ID] = append(exclusionNames[respondent.ID], excluded)
				}
			}
		}

		sheet.Respondents = append(sheet.Respondents, respondent)
	}

	// 所有人都读完之后才能按名字解析排斥关系
	for _, respondent := range sheet.Respondents {
		for _, excluded := range exclusionNames[respondent.ID] {
			id, exists := ids[excluded]
			if !exists {
				return nil, fmt.Errorf("%s 排斥的 %s 不在表格中", respondent.Name, excluded)
			}
			if id == respondent.ID {
				return nil, fmt.Errorf("%s 不能排斥自己", respondent.Name)
			}
			respondent.Exclusions = append(respondent.Exclusions, id)
		}
	}

	return sheet, nil
}

// WriteResponses 按 ReadResponses 能读取的格式写出表格
func WriteResponses(w io.Writer, sheet *ResponseSheet) error {
	writer := csv.NewWriter(w)

	withEmail := false
	for _, respondent := range sheet.Respondents {
		if respondent.Email != "" {
			withEmail = true
			break
		}
	}

	headers := []string{NameHeader}
	for _, group := range sheet.Plan.Groups {
		headers = append(headers, group.Name)
	}
	headers = append(headers, ExclusionsHeader)
	if withEmail {
		headers = append(headers, EmailHeader)
	}
	if err := writer.Write(headers); err != nil {
		return err
	}

	names := make(map[int64]string, len(sheet.Respondents))
	for _, respondent := range sheet.Respondents {
		names[respondent.ID] = respondent.Name
	}

	for _, respondent := range sheet.Respondents {
		ratings := make(map[int64]int32, len(respondent.Ratings))
		for _, rating := range respondent.Ratings {
			ratings[rating.GroupID] = rating.Rating
		}

		row := []string{respondent.Name}
		for _, group := range sheet.Plan.Groups {
			rating, ok := ratings[group.ID]
			if !ok {
				return fmt.Errorf("%s 没有对 %s 评分", respondent.Name, group.Name)
			}
			row = append(row, strconv.FormatInt(int64(rating), 10))
		}

		excluded := make([]string, 0, len(respondent.Exclusions))
		for _, id := range respondent.Exclusions {
			name, ok := names[id]
			if !ok {
				return fmt.Errorf("%s 排斥的人员 %d 不在表格中", respondent.Name, id)
			}
			excluded = append(excluded, name)
		}
		row = append(row, strings.Join(excluded, exclusionSeparator))

		if withEmail {
			row = append(row, respondent.Email)
		}

		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// BindToPlan 按组名把表格中的评分对应到已经存在的计划上，返回的人员仍然使用临时 ID
func (s *ResponseSheet) BindToPlan(plan *domain.AllocationPlan) ([]*domain.Respondent, error) {
	if len(s.Plan.Groups) != len(plan.Groups) {
		return nil, fmt.Errorf("表格中有 %d 个组，计划中有 %d 个组", len(s.Plan.Groups), len(plan.Groups))
	}

	planGroups := make(map[string]int64, len(plan.Groups))
	for _, group := range plan.Groups {
		planGroups[group.Name] = group.ID
	}

	groupIDs := make(map[int64]int64, len(s.Plan.Groups)) // 表格中的组 -> 计划中的组
	for _, group := range s.Plan.Groups {
		id, ok := planGroups[group.Name]
		if !ok {
			return nil, fmt.Errorf("计划中没有名为 %s 的组", group.Name)
		}
		groupIDs[group.ID] = id
	}

	respondents := make([]*domain.Respondent, len(s.Respondents))
	for i, respondent := range s.Respondents {
		bound := &domain.Respondent{
			ID:         respondent.ID,
			PlanID:     plan.ID,
			Name:       respondent.Name,
			Email:      respondent.Email,
			Ratings:    make([]domain.RespondentRating, len(respondent.Ratings)),
			Exclusions: append([]int64(nil), respondent.Exclusions...),
		}
		for j, rating := range respondent.Ratings {
			bound.Ratings[j] = domain.RespondentRating{GroupID: groupIDs[rating.GroupID], Rating: rating.Rating}
		}
		respondents[i] = bound
	}

	return respondents, nil
}

// GenerateSheet 生成一张随机的问卷表格，组名优先使用默认的项目组
func GenerateSheet(rng *rand.Rand, groupNumber int, opts utils.ResponseOptions) *ResponseSheet {
	plan := utils.GenerateRandomPlan(rng, groupNumber)
	return &ResponseSheet{
		Plan:        *plan,
		Respondents: utils.GenerateRandomRespondents(rng, plan.Groups, opts),
	}
}

func WriteSheetFile(path string, sheet *ResponseSheet) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteResponses(file, sheet); err != nil {
		return err
	}
	return file.Close()
}

func ReadSheetFile(path string) (*ResponseSheet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadResponses(file)
}

// SeedResponsesFromCSV 把问卷表格导入到已经存在的计划中
func SeedResponsesFromCSV(r *repository.Repository, planID int64, path string) error {
	plan, err := r.GetAllocationPlanByID(planID)
	if err != nil {
		return fmt.Errorf("获取分组计划失败: %w", err)
	}

	sheet, err := ReadSheetFile(path)
	if err != nil {
		return fmt.Errorf("读取问卷表格失败: %w", err)
	}

	respondents, err := sheet.BindToPlan(plan)
	if err != nil {
		return err
	}

	if err := r.CreateRespondents(plan.ID, respondents); err != nil {
		return fmt.Errorf("插入问卷失败: %w", err)
	}

	slog.Info("导入问卷完成", slog.Int64("plan_id", plan.ID), slog.Int("count", len(respondents)))
	return nil
}

// SeedRandomRespondents 为计划生成随机问卷并插入
func SeedRandomRespondents(r *repository.Repository, rng *rand.Rand, planID int64, opts utils.ResponseOptions) error {
	plan, err := r.GetAllocationPlanByID(planID)
	if err != nil {
		return fmt.Errorf("获取分组计划失败: %w", err)
	}

	respondents := utils.GenerateRandomRespondents(rng, plan.Groups, opts)
	if err := r.CreateRespondents(plan.ID, respondents); err != nil {
		return fmt.Errorf("插入问卷失败: %w", err)
	}

	slog.Info("插入随机问卷完成", slog.Int64("plan_id", plan.ID), slog.Int("count", len(respondents)))
	return nil
}
