package db

import (
	"gorm.io/gorm"

	types "github.com/newsforge/newsforge-backend/internal/domain"
)

func AutoMigrateAll(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		// Tenancy
		&types.Tenant{},

		// Inputs
		&types.SourceArticle{},

		// Templates + versions
		&types.PromptTemplate{},
		&types.TemplateVersion{},

		// Execution
		&types.JobRun{},
		&types.WorkflowRun{},
		&types.Artifact{},
		&types.ResponseLog{},
	)
}
