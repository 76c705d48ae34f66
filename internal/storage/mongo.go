package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/logger"
	"github.com/ahsanj/local-log-analyzer/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig holds MongoDB connection settings
type MongoConfig struct {
	URI         string        `mapstructure:"uri"`
	Database    string        `mapstructure:"database"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxPoolSize uint64        `mapstructure:"max_pool_size"`
}

type contentDocument struct {
	ID   string `bson:"_id"`
	Data []byte `bson:"data"`
}

type analysisDocument struct {
	ID       string             `bson:"_id"`
	Analysis models.LogAnalysis `bson:"analysis"`
}

// MongoStore keeps files, contents, entries and analyses in four
// collections of one database.
type MongoStore struct {
	client   *mongo.Client
	files    *mongo.Collection
	contents *mongo.Collection
	entries  *mongo.Collection
	analyses *mongo.Collection
	timeout  time.Duration
}

// NewMongoStore connects, pings and prepares indexes.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	// Decode nested metadata as maps so it serializes back to plain JSON.
	clientOpts.SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:   client,
		files:    db.Collection("log_files"),
		contents: db.Collection("log_contents"),
		entries:  db.Collection("log_entries"),
		analyses: db.Collection("log_analyses"),
		timeout:  cfg.Timeout,
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		// Queries still work without indexes, just slower.
		logger.WithError(err, "mongo_store").Warn("Failed to ensure indexes")
	}

	logger.Info("Connected to MongoDB", map[string]interface{}{
		"database": cfg.Database,
	})
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.entries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "log_file_id", Value: 1}, {Key: "line_number", Value: 1}},
		Options: options.Index().SetName("file_line"),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	_, err = s.files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "upload_time", Value: -1}},
		Options: options.Index().SetName("upload_time_desc"),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateFile(ctx context.Context, file *models.LogFile, content []byte) error {
	if _, err := s.files.InsertOne(ctx, file); err != nil {
		return fmt.Errorf("failed to create log file record: %w", err)
	}
	if _, err := s.contents.InsertOne(ctx, contentDocument{ID: file.ID, Data: content}); err != nil {
		_, _ = s.files.DeleteOne(ctx, bson.M{"_id": file.ID})
		return fmt.Errorf("failed to store log content: %w", err)
	}
	return nil
}

func (s *MongoStore) GetFile(ctx context.Context, id string) (*models.LogFile, error) {
	var file models.LogFile
	if err := s.files.FindOne(ctx, bson.M{"_id": id}).Decode(&file); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get log file: %w", err)
	}
	return &file, nil
}

func (s *MongoStore) ListFiles(ctx context.Context) ([]models.LogFile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "upload_time", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.files.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	files := []models.LogFile{}
	if err := cur.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to decode log files: %w", err)
	}
	return files, nil
}

func (s *MongoStore) GetContent(ctx context.Context, id string) ([]byte, error) {
	var doc contentDocument
	if err := s.contents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get log content: %w", err)
	}
	return doc.Data, nil
}

func (s *MongoStore) UpdateFileStatus(ctx context.Context, id string, status models.FileStatus, reason string) error {
	res, err := s.files.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":         status,
		"failure_reason": reason,
	}})
	if err != nil {
		return fmt.Errorf("failed to update log file status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (s *MongoStore) SaveResult(ctx context.Context, analysis *models.LogAnalysis, entries []models.LogEntry) error {
	id := analysis.FileID
	if _, err := s.GetFile(ctx, id); err != nil {
		return err
	}

	if _, err := s.entries.DeleteMany(ctx, bson.M{"log_file_id": id}); err != nil {
		return fmt.Errorf("failed to clear log entries: %w", err)
	}
	for start := 0; start < len(entries); start += entryBatchSize {
		end := min(start+entryBatchSize, len(entries))
		docs := make([]interface{}, 0, end-start)
		for i := start; i < end; i++ {
			e := entries[i]
			e.LogFileID = id
			docs = append(docs, e)
		}
		if _, err := s.entries.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
			return fmt.Errorf("failed to save log entries: %w", err)
		}
	}

	_, err := s.analyses.ReplaceOne(ctx, bson.M{"_id": id},
		analysisDocument{ID: id, Analysis: *analysis},
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	res, err := s.files.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":         models.FileStatusAnalyzed,
		"failure_reason": "",
		"entry_count":    len(entries),
	}})
	if err != nil {
		return fmt.Errorf("failed to update log file status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (s *MongoStore) GetAnalysis(ctx context.Context, id string) (*models.LogAnalysis, error) {
	var doc analysisDocument
	if err := s.analyses.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &doc.Analysis, nil
}

func (s *MongoStore) GetEntries(ctx context.Context, id string) ([]models.LogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "line_number", Value: 1}})
	cur, err := s.entries.Find(ctx, bson.M{"log_file_id": id}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get log entries: %w", err)
	}
	entries := []models.LogEntry{}
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode log entries: %w", err)
	}
	return entries, nil
}

func (s *MongoStore) DeleteFile(ctx context.Context, id string) error {
	res, err := s.files.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete log file: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrFileNotFound
	}
	if _, err := s.entries.DeleteMany(ctx, bson.M{"log_file_id": id}); err != nil {
		return fmt.Errorf("failed to delete log entries: %w", err)
	}
	if _, err := s.analyses.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if _, err := s.contents.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete log content: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
