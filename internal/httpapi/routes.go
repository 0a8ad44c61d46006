package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/events"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/httpapi/middleware"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/preview"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/project"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/term"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/version"
)

// githubRate bounds the device-flow pass-through; GitHub throttles abusive
// device-code clients by IP.
const githubRate = "30-M"

// Deps are the daemon services the HTTP surface fronts.
type Deps struct {
	Projects *project.Manager
	Bus      *events.Bus
	Preview  *preview.Previewer
	Terms    *term.Manager
	Log      *slog.Logger
}

func SetupRoutes(deps *Deps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	folderH := NewFolderHandler(deps.Projects)
	filesH := NewFilesHandler(deps.Projects, deps.Preview, deps.Bus)
	scriptsH := NewScriptsHandler(deps.Projects)
	metadataH := NewMetadataHandler(deps.Projects, deps.Preview)
	syncH := NewSyncHandler(deps.Projects)
	watchH := NewWatchHandler(deps.Projects, deps.Bus, deps.Log)
	githubH := NewGitHubHandler()
	terminalH := NewTerminalHandler(deps.Projects, deps.Terms, deps.Log)

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(deps.Log))
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	r.Use(middleware.SecureHeaders())

	r.GET("/", func(c *gin.Context) {
		c.PureJSON(http.StatusOK, gin.H{
			"app":     version.AppName,
			"version": version.Version,
		})
	})

	api := r.Group("/api")
	{
		api.GET("/health", folderH.Health)

		api.POST("/folder/select", folderH.Select)
		api.GET("/folder/info", folderH.Info)
		api.GET("/fs/home", folderH.Home)
		api.GET("/fs/list", folderH.List)

		api.GET("/files/tree", filesH.Tree)
		api.GET("/files/read", filesH.Read)
		api.POST("/files/write", filesH.Write)
		api.POST("/files/delete", filesH.Delete)

		api.GET("/scripts", scriptsH.List)
		api.POST("/scripts/run", scriptsH.Run)
		api.POST("/pip/install", scriptsH.PipInstall)

		api.POST("/metadata/generate", metadataH.Generate)
		api.GET("/watch/check", watchH.Check)

		api.GET("/dataframe/rows", metadataH.Rows)
		api.POST("/dataframe/query", metadataH.Query)

		api.POST("/sync/pull", syncH.Pull)
		api.POST("/sync/push", syncH.Push)
		api.POST("/sync/metadata", syncH.Metadata)
		api.POST("/sync/full", syncH.Full)

		github := api.Group("/github")
		github.Use(middleware.RateLimit(githubRate))
		{
			github.POST("/device-code", githubH.DeviceCode)
			github.POST("/token", githubH.Token)
		}

		api.GET("/terminals", terminalH.List)
		api.POST("/terminals/close", terminalH.Close)
	}

	ws := r.Group("/ws")
	{
		ws.GET("/watch", watchH.Socket)
		ws.GET("/terminal", terminalH.Socket)
	}

	return r
}
