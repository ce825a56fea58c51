package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/newsforge/newsforge-backend/internal/data/db"
	"github.com/newsforge/newsforge-backend/internal/data/repos/templates"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

/*
seedtemplates loads a YAML template pack into a tenant's library:

	tenant:
	  name: Example Newsroom
	  slug: example
	templates:
	  - name: Blog Post
	    category: blog_post
	    execution_order: 10
	    prompt_body: |
	      Write a blog post about {article_title}...
	    system_message: You are an editor.
	    parameters:
	      parsing_method: generic
	      max_output_tokens: 1500

Existing templates (by tenant+name) are skipped, not overwritten; edits go
through the versioned API.
*/

type packFile struct {
	Tenant struct {
		Name string `yaml:"name"`
		Slug string `yaml:"slug"`
	} `yaml:"tenant"`
	Templates []packTemplate `yaml:"templates"`
}

type packTemplate struct {
	Name           string         `yaml:"name"`
	Category       string         `yaml:"category"`
	ExecutionOrder int            `yaml:"execution_order"`
	Active         *bool          `yaml:"active"`
	PromptBody     string         `yaml:"prompt_body"`
	SystemMessage  string         `yaml:"system_message"`
	Parameters     map[string]any `yaml:"parameters"`
	Notes          string         `yaml:"notes"`
}

func main() {
	var path string
	flag.StringVar(&path, "pack", "", "path to the YAML template pack")
	flag.Parse()

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if path == "" {
		log.Error("missing -pack flag")
		os.Exit(2)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Error("read pack failed", "path", path, "error", err)
		os.Exit(1)
	}
	var pack packFile
	if err := yaml.Unmarshal(raw, &pack); err != nil {
		log.Error("parse pack failed", "path", path, "error", err)
		os.Exit(1)
	}
	if strings.TrimSpace(pack.Tenant.Slug) == "" {
		log.Error("pack missing tenant.slug")
		os.Exit(2)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	gdb := pg.DB()
	if err := db.AutoMigrateAll(gdb); err != nil {
		log.Error("postgres migrate failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	tenant, err := ensureTenant(dbc, gdb, pack.Tenant.Name, pack.Tenant.Slug)
	if err != nil {
		log.Error("ensure tenant failed", "slug", pack.Tenant.Slug, "error", err)
		os.Exit(1)
	}

	repo := templates.NewRepo(gdb, log)
	existing, err := repo.List(dbc, tenant.ID)
	if err != nil {
		log.Error("list templates failed", "error", err)
		os.Exit(1)
	}
	byName := make(map[string]bool, len(existing))
	for _, t := range existing {
		byName[t.Name] = true
	}

	created, skipped := 0, 0
	for _, pt := range pack.Templates {
		name := strings.TrimSpace(pt.Name)
		if name == "" || strings.TrimSpace(pt.PromptBody) == "" {
			log.Warn("skipping malformed pack entry", "name", pt.Name)
			skipped++
			continue
		}
		if byName[name] {
			log.Info("template exists, skipping", "name", name)
			skipped++
			continue
		}

		var params datatypes.JSON
		if pt.Parameters != nil {
			b, mErr := json.Marshal(pt.Parameters)
			if mErr != nil {
				log.Warn("skipping entry with bad parameters", "name", name, "error", mErr)
				skipped++
				continue
			}
			params = datatypes.JSON(b)
		}

		active := true
		if pt.Active != nil {
			active = *pt.Active
		}
		t := &types.PromptTemplate{
			ID:             uuid.New(),
			TenantID:       tenant.ID,
			Name:           name,
			Category:       strings.TrimSpace(pt.Category),
			ExecutionOrder: pt.ExecutionOrder,
			Active:         active,
		}
		v := &types.TemplateVersion{
			ID:            uuid.New(),
			PromptBody:    pt.PromptBody,
			SystemMessage: pt.SystemMessage,
			Parameters:    params,
			CreatedBy:     "seedtemplates",
			Notes:         pt.Notes,
		}
		if err := repo.Create(dbc, t, v); err != nil {
			log.Error("create template failed", "name", name, "error", err)
			os.Exit(1)
		}
		created++
	}

	log.Info("template pack loaded",
		"tenant", tenant.Slug, "created", created, "skipped", skipped)
}

func ensureTenant(dbc dbctx.Context, gdb *gorm.DB, name, slug string) (*types.Tenant, error) {
	slug = strings.TrimSpace(slug)
	var tenant types.Tenant
	err := gdb.WithContext(dbc.Ctx).Where("slug = ?", slug).First(&tenant).Error
	if err == nil {
		return &tenant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = slug
	}
	tenant = types.Tenant{
		ID:   uuid.New(),
		Name: strings.TrimSpace(name),
		Slug: slug,
	}
	if err := gdb.WithContext(dbc.Ctx).Create(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}
