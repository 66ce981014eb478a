package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"veritas/internal/config"
	"veritas/internal/llm"
	"veritas/internal/pipeline"
	"veritas/internal/review"
)

// Server wires the HTTP gateway to the pipelines.
type Server struct {
	cfg    *config.Config
	client llm.Client
	store  *jobStore
	log    *zap.Logger
}

// New builds a Server; log may be nil.
func New(cfg *config.Config, client llm.Client, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		client: client,
		store:  newJobStore(),
		log:    log,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(s.cfg.Server.AllowedOrigins) == 1 && s.cfg.Server.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.Server.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	api := r.Group("/api")
	api.GET("/health", s.health)
	api.POST("/generate", s.generate)
	api.GET("/jobs/:id", s.jobStatus)
	api.GET("/jobs/:id/download/:artifact", s.download)
	api.DELETE("/jobs/:id", s.deleteJob)
	return r
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	s.log.Info("http gateway listening", zap.String("addr", s.cfg.Server.Addr))
	return s.Router().Run(s.cfg.Server.Addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// generateRequest is the single-shot generation request. The research
// question is the only required input.
type generateRequest struct {
	RQ    string `json:"rq" binding:"required,min=5"`
	Topic string `json:"topic"`

	WithIdeas *bool `json:"with_ideas"`
	NoDedupe  bool  `json:"no_dedupe"`

	MinWords int `json:"min_words"`
	MaxWords int `json:"max_words"`
	MaxIters int `json:"max_iters"`
}

func (s *Server) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = strings.TrimSpace(req.RQ)
		if len(topic) > 120 {
			topic = strings.TrimSpace(topic[:120]) + "..."
		}
	}

	// Per-job config copy so request overrides never leak across jobs.
	cfg := *s.cfg
	if req.WithIdeas != nil {
		cfg.Ideas.Enabled = *req.WithIdeas
	}
	cfg.Extraction.NoDedupe = req.NoDedupe
	if req.MinWords > 0 {
		cfg.Paper.MinWords = req.MinWords
	}
	if req.MaxWords > 0 {
		cfg.Paper.MaxWords = req.MaxWords
	}
	if req.MaxIters > 0 {
		cfg.Paper.MaxIters = req.MaxIters
	}

	jobRoot := filepath.Join(cfg.Paths.OutDir, "runs")
	job := s.store.create(req.RQ, topic, "")
	jobRoot = filepath.Join(jobRoot, job.ID)
	s.store.update(job.ID, func(j *Job) { j.Root = jobRoot })

	go s.runJob(job.ID, &cfg, req.RQ, topic, jobRoot)

	c.JSON(http.StatusOK, gin.H{"job_id": job.ID})
}

// runJob drives both pipelines for one job, mapping quotes progress into
// 0-60 and paper progress into 60-100 so the frontend bar moves smoothly.
func (s *Server) runJob(jobID string, cfg *config.Config, rq, topic, jobRoot string) {
	s.store.update(jobID, func(j *Job) { j.Status = StatusRunning })

	csvDir := filepath.Join(jobRoot, "csvs")
	outDir := filepath.Join(jobRoot, "outputs")

	runner := pipeline.NewRunner(cfg, s.client, s.log)
	ctx := context.Background()

	quotesArt, err := runner.RunQuotes(ctx, rq, cfg.Paths.PapersDir, csvDir, func(stage string, pct int) {
		s.store.setProgress(jobID, stage, pct*60/100)
	})
	if err != nil {
		s.fail(jobID, err)
		return
	}

	paperArt, err := runner.RunPaper(ctx, rq, topic, cfg.Paths.PapersDir, outDir, quotesArt.Records, func(stage string, pct int) {
		s.store.setProgress(jobID, stage, 60+pct*40/100)
	})
	if err != nil {
		s.fail(jobID, err)
		return
	}

	// The quick overview shown before the full paper; best-effort, a
	// failed summary never fails the job.
	summary, err := review.NewSummarizer(s.client, 0, s.log).Summarize(ctx, quotesArt.Records, rq)
	if err != nil {
		s.log.Warn("summary generation failed", zap.String("job", jobID), zap.Error(err))
		summary = ""
	}

	s.store.update(jobID, func(j *Job) {
		j.Status = StatusSucceeded
		j.Summary = summary
		j.Stage = "done"
		j.Progress = 100
		j.Artifacts = map[string]string{
			"rq_quotes.csv":             quotesArt.RQQuotesCSV,
			"all_quotes.csv":            quotesArt.MergedCSV,
			"all_quotes_with_ideas.csv": quotesArt.FinalCSV,
			"paper.md":                  paperArt.PaperMD,
			"citations.json":            paperArt.CitationsJSON,
		}
	})
}

func (s *Server) fail(jobID string, err error) {
	s.log.Warn("job failed", zap.String("job", jobID), zap.Error(err))
	s.store.update(jobID, func(j *Job) {
		j.Status = StatusFailed
		j.Stage = StatusFailed
		j.Error = err.Error()
		j.Progress = 100
	})
}

func (s *Server) jobStatus(c *gin.Context) {
	job, ok := s.store.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) download(c *gin.Context) {
	job, ok := s.store.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	path, ok := job.Artifacts[c.Param("artifact")]
	if !ok || path == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown artifact name"})
		return
	}
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found on disk"})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

func (s *Server) deleteJob(c *gin.Context) {
	job, ok := s.store.delete(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.Root != "" {
		if err := os.RemoveAll(job.Root); err != nil {
			s.log.Warn("failed to remove job dir", zap.String("job", job.ID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": job.ID})
}
