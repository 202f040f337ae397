package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/task-hive/taskhive/internal/models"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

const projectColumns = `id, workspace_id, name, description, status, progress,
	created_by, is_active, total_tasks, completed_tasks, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	p := &models.Project{}
	var description sql.NullString
	var active int
	err := row.Scan(
		&p.ID, &p.WorkspaceID, &p.Name, &description, &p.Status, &p.Progress,
		&p.CreatedBy, &active, &p.TotalTasks, &p.CompletedTasks,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	p.IsActive = active != 0
	return p, nil
}

func (r *sqliteProjectRepo) Create(ctx context.Context, project *models.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, workspace_id, name, description, status, progress,
			created_by, is_active, total_tasks, completed_tasks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
	`, project.ID, project.WorkspaceID, project.Name, project.Description,
		project.Status, project.Progress, project.CreatedBy,
		boolToInt(project.IsActive), project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by id: %w", err)
	}
	return p, nil
}

// Update persists name, description, status, and progress. The rollup
// counters are owned by the task repository and never written here.
func (r *sqliteProjectRepo) Update(ctx context.Context, project *models.Project) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, description = ?, status = ?, progress = ?, updated_at = ?
		WHERE id = ?
	`, project.Name, project.Description, project.Status, project.Progress,
		project.UpdatedAt, project.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project not found: %s", project.ID)
	}
	return nil
}

func (r *sqliteProjectRepo) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE projects SET is_active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("soft delete project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

func (r *sqliteProjectRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]*models.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE workspace_id = ? AND is_active = 1
		ORDER BY name
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *sqliteProjectRepo) CreateCategory(ctx context.Context, c *models.Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO project_categories (project_id, name, status, position, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ProjectID, c.Name, c.Status, c.Position, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q already exists in project", c.Name)
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) GetCategory(ctx context.Context, projectID, name string) (*models.Category, error) {
	c := &models.Category{}
	var completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT project_id, name, status, position, completed_at, created_at
		FROM project_categories WHERE project_id = ? AND name = ?
	`, projectID, name).Scan(
		&c.ProjectID, &c.Name, &c.Status, &c.Position, &completedAt, &c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return c, nil
}

func (r *sqliteProjectRepo) ListCategories(ctx context.Context, projectID string) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT project_id, name, status, position, completed_at, created_at
		FROM project_categories WHERE project_id = ?
		ORDER BY position, name
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		c := &models.Category{}
		var completedAt sql.NullTime
		err := rows.Scan(&c.ProjectID, &c.Name, &c.Status, &c.Position, &completedAt, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if completedAt.Valid {
			c.CompletedAt = &completedAt.Time
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *sqliteProjectRepo) UpdateCategory(ctx context.Context, c *models.Category) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE project_categories SET status = ?, position = ?, completed_at = ?
		WHERE project_id = ? AND name = ?
	`, c.Status, c.Position, c.CompletedAt, c.ProjectID, c.Name)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("category not found: %s", c.Name)
	}
	return nil
}

// DeleteCategory removes an empty category. The guard is embedded in the
// delete so a concurrent task insert cannot slip past a prior emptiness
// check.
func (r *sqliteProjectRepo) DeleteCategory(ctx context.Context, projectID, name string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM project_categories
		WHERE project_id = ? AND name = ?
		  AND NOT EXISTS (
			SELECT 1 FROM tasks WHERE project_id = ? AND category_name = ?
		  )
	`, projectID, name, projectID, name)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		c, err := r.GetCategory(ctx, projectID, name)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("category not found: %s", name)
		}
		return ErrCategoryNotEmpty
	}
	return nil
}

func (r *sqliteProjectRepo) UpsertCategoryMember(ctx context.Context, m *models.CategoryMember) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO category_members (project_id, category_name, user_id, role)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, category_name, user_id) DO UPDATE SET role = excluded.role
	`, m.ProjectID, m.CategoryName, m.UserID, m.Role)
	if err != nil {
		return fmt.Errorf("upsert category member: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) GetCategoryMember(ctx context.Context, projectID, category, userID string) (*models.CategoryMember, error) {
	m := &models.CategoryMember{}
	err := r.db.QueryRowContext(ctx, `
		SELECT project_id, category_name, user_id, role
		FROM category_members
		WHERE project_id = ? AND category_name = ? AND user_id = ?
	`, projectID, category, userID).Scan(
		&m.ProjectID, &m.CategoryName, &m.UserID, &m.Role,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category member: %w", err)
	}
	return m, nil
}

func (r *sqliteProjectRepo) ListCategoryMembers(ctx context.Context, projectID, category string) ([]*models.CategoryMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT project_id, category_name, user_id, role
		FROM category_members
		WHERE project_id = ? AND category_name = ?
		ORDER BY user_id
	`, projectID, category)
	if err != nil {
		return nil, fmt.Errorf("list category members: %w", err)
	}
	defer rows.Close()

	var members []*models.CategoryMember
	for rows.Next() {
		m := &models.CategoryMember{}
		if err := rows.Scan(&m.ProjectID, &m.CategoryName, &m.UserID, &m.Role); err != nil {
			return nil, fmt.Errorf("scan category member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *sqliteProjectRepo) RemoveCategoryMember(ctx context.Context, projectID, category, userID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM category_members
		WHERE project_id = ? AND category_name = ? AND user_id = ?
	`, projectID, category, userID)
	if err != nil {
		return fmt.Errorf("remove category member: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotMember
	}
	return nil
}
