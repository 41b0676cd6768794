package app

import (
	"database/sql"

	"github.com/go-chi/oauth"

	"github.com/sitovia/briefs/config"
	"github.com/sitovia/briefs/importer"
	"github.com/sitovia/briefs/metrics"
	"github.com/sitovia/briefs/render"
	"github.com/sitovia/briefs/store"
)

// App carries the shared dependencies handed to every handler factory.
type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config

	Forms       *store.Forms
	Drafts      *store.Drafts
	Submissions store.SubmissionLog
	Importer    *importer.Importer
	Renderer    *render.Renderer
	Metrics     *metrics.Metrics
}
