package controllers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/ahsanj/local-log-analyzer/internal/logger"
	"github.com/ahsanj/local-log-analyzer/internal/services"
	"github.com/gin-gonic/gin"
	ozzo "github.com/go-ozzo/ozzo-validation"
)

type FileController struct {
	files    *services.FileService
	analyzer *services.LogAnalyzer
	queue    *services.AnalysisQueue
	maxBytes int64
}

// NewFileController wires ingestion. queue may be nil, in which case files
// are analyzed on first read.
func NewFileController(files *services.FileService, analyzer *services.LogAnalyzer, queue *services.AnalysisQueue, maxBytes int64) *FileController {
	return &FileController{
		files:    files,
		analyzer: analyzer,
		queue:    queue,
		maxBytes: maxBytes,
	}
}

type PasteRequest struct {
	Content *string `json:"content"`
}

func (r PasteRequest) Validate() error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Content, ozzo.NotNil),
	)
}

// UploadLogFile handles multipart uploads in the "file" field
func (fc *FileController) UploadLogFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "No file uploaded")
		return
	}
	if fc.maxBytes > 0 && header.Size > fc.maxBytes {
		respondError(c, fmt.Errorf("%w: file is %d bytes, limit is %d", services.ErrResourceExceeded, header.Size, fc.maxBytes), "file_controller")
		return
	}

	f, err := header.Open()
	if err != nil {
		badRequest(c, "Failed to read uploaded file")
		return
	}
	defer f.Close()

	var r io.Reader = f
	if fc.maxBytes > 0 {
		// one byte over the limit is enough for the size check to trip
		r = io.LimitReader(f, fc.maxBytes+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		badRequest(c, "Failed to read uploaded file")
		return
	}

	resp, err := fc.files.Upload(c.Request.Context(), header.Filename, content)
	if err != nil {
		respondError(c, err, "file_controller")
		return
	}
	fc.created(c, resp)
}

// PasteLogContent stores pasted text
func (fc *FileController) PasteLogContent(c *gin.Context) {
	var req PasteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := fc.files.Paste(c.Request.Context(), *req.Content)
	if err != nil {
		respondError(c, err, "file_controller")
		return
	}
	fc.created(c, resp)
}

func (fc *FileController) created(c *gin.Context, resp *services.FileUploadResponse) {
	body := gin.H{"file": resp}
	if fc.queue != nil {
		if job, err := fc.queue.Enqueue(resp.FileID); err == nil {
			body["job_id"] = job.ID
		} else {
			logger.WithLogFile(resp.FileID, resp.Filename).WithField("error", err.Error()).Warn("Background analysis not scheduled")
		}
	}
	c.JSON(http.StatusCreated, body)
}

func (fc *FileController) GetLogFiles(c *gin.Context) {
	files, err := fc.files.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "file_controller")
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files, "total": len(files)})
}

func (fc *FileController) GetLogFile(c *gin.Context) {
	file, err := fc.files.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "file_controller")
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": file})
}

// DeleteLogFile removes the file and everything derived from it
func (fc *FileController) DeleteLogFile(c *gin.Context) {
	id := c.Param("id")
	if err := fc.analyzer.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "file_controller")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Log file deleted", "file_id": id})
}

// GetJob reports a background analysis job
func (fc *FileController) GetJob(c *gin.Context) {
	if fc.queue == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "background analysis is disabled"})
		return
	}
	job, ok := fc.queue.Job(c.Param("jobId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}
