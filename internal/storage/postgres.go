package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/rex/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	return OpenPostgres(ctx, config.DSN(), config, logger)
}

// OpenPostgres connects using a raw DSN or URL and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	s.logger.Info("Database schema initialized")
	return nil
}

// inTx runs fn in a transaction, rolling back on any error.
func (s *PostgresStorage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func requireAffected(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// Conversations

func (s *PostgresStorage) CreateConversation(ctx context.Context, username string) (*models.Conversation, error) {
	conv := &models.Conversation{Username: username}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO conversations (username) VALUES ($1) RETURNING id, created_at`,
			username,
		).Scan(&conv.ID, &conv.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStorage) AddMessage(ctx context.Context, msg *models.Message) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
			INSERT INTO messages (conversation_id, sender, role, content, emotional_tone)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, timestamp`,
			msg.ConversationID,
			msg.Sender,
			msg.Role,
			msg.Content,
			msg.EmotionalTone,
		).Scan(&msg.ID, &msg.Timestamp)
	})
	if err != nil {
		return fmt.Errorf("error storing message: %w", err)
	}
	return nil
}

func (s *PostgresStorage) FindConversations(ctx context.Context, username string, mode MatchMode, limit int) ([]*models.Conversation, error) {
	where := `LOWER(username) = LOWER($1)`
	if mode == MatchSubstring {
		where = `STRPOS(LOWER(username), LOWER($1)) > 0`
	}
	query := `
		SELECT id, username, created_at
		FROM conversations
		WHERE ` + where + `
		ORDER BY created_at DESC, id DESC`
	args := []any{username}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		conv := &models.Conversation{}
		if err := rows.Scan(&conv.ID, &conv.Username, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (s *PostgresStorage) ListConversations(ctx context.Context) ([]*models.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.username, c.created_at, COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.created_at DESC, c.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	var summaries []*models.ConversationSummary
	for rows.Next() {
		summary := &models.ConversationSummary{}
		if err := rows.Scan(&summary.ID, &summary.Username, &summary.CreatedAt, &summary.MessageCount); err != nil {
			return nil, fmt.Errorf("error scanning conversation: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (s *PostgresStorage) GetMessages(ctx context.Context, conversationID int64) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender, role, content, emotional_tone, timestamp
		FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Sender,
			&msg.Role,
			&msg.Content,
			&msg.EmotionalTone,
			&msg.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Settings

func (s *PostgresStorage) GetSettings(ctx context.Context) ([]*models.Setting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at FROM admin_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("error querying settings: %w", err)
	}
	defer rows.Close()

	var settings []*models.Setting
	for rows.Next() {
		setting := &models.Setting{}
		if err := rows.Scan(&setting.Key, &setting.Value, &setting.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning setting: %w", err)
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}

func (s *PostgresStorage) UpsertSettings(ctx context.Context, settings map[string]string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for key, value := range settings {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO admin_settings (key, value, updated_at)
				VALUES ($1, $2, NOW())
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
				key, value)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error updating settings: %w", err)
	}
	return nil
}

// Guidelines

func (s *PostgresStorage) ListGuidelines(ctx context.Context) ([]*models.Guideline, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, description, updated_at FROM guidelines ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("error querying guidelines: %w", err)
	}
	defer rows.Close()

	var guidelines []*models.Guideline
	for rows.Next() {
		g := &models.Guideline{}
		if err := rows.Scan(&g.Key, &g.Value, &g.Description, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning guideline: %w", err)
		}
		guidelines = append(guidelines, g)
	}
	return guidelines, rows.Err()
}

func (s *PostgresStorage) UpsertGuidelines(ctx context.Context, values map[string]string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for key, value := range values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO guidelines (key, value, updated_at)
				VALUES ($1, $2, NOW())
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
				key, value)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error updating guidelines: %w", err)
	}
	return nil
}

func (s *PostgresStorage) CreateGuideline(ctx context.Context, g *models.Guideline) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO guidelines (key, value, description, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (key) DO NOTHING`,
			g.Key, g.Value, g.Description)
		if err != nil {
			return fmt.Errorf("error creating guideline: %w", err)
		}
		if err := requireAffected(result, "guideline "+g.Key); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("guideline %q: %w", g.Key, ErrAlreadyExists)
			}
			return err
		}
		return nil
	})
}

func (s *PostgresStorage) UpdateGuideline(ctx context.Context, g *models.Guideline) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE guidelines
			SET value = $1, description = $2, updated_at = NOW()
			WHERE key = $3`,
			g.Value, g.Description, g.Key)
		if err != nil {
			return fmt.Errorf("error updating guideline: %w", err)
		}
		return requireAffected(result, "guideline "+g.Key)
	})
}

func (s *PostgresStorage) DeleteGuideline(ctx context.Context, key string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM guidelines WHERE key = $1`, key)
		if err != nil {
			return fmt.Errorf("error deleting guideline: %w", err)
		}
		return requireAffected(result, "guideline "+key)
	})
}

func (s *PostgresStorage) SeedGuidelines(ctx context.Context, guidelines []*models.Guideline) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, g := range guidelines {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO guidelines (key, value, description, updated_at)
				VALUES ($1, $2, $3, NOW())
				ON CONFLICT (key) DO NOTHING`,
				g.Key, g.Value, g.Description)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error seeding guidelines: %w", err)
	}
	return nil
}

// Reflections

func (s *PostgresStorage) ListReflections(ctx context.Context, filter ReflectionFilter) ([]*models.Reflection, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.PublishedOnly {
		conditions = append(conditions, "published = TRUE")
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}

	query := `SELECT id, title, content, type, published, created_at, updated_at FROM reflections`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying reflections: %w", err)
	}
	defer rows.Close()

	var reflections []*models.Reflection
	for rows.Next() {
		r := &models.Reflection{}
		err := rows.Scan(
			&r.ID,
			&r.Title,
			&r.Content,
			&r.Type,
			&r.Published,
			&r.CreatedAt,
			&r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning reflection: %w", err)
		}
		reflections = append(reflections, r)
	}
	return reflections, rows.Err()
}

func (s *PostgresStorage) CreateReflection(ctx context.Context, r *models.Reflection) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
			INSERT INTO reflections (title, content, type, published)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at`,
			r.Title, r.Content, r.Type, r.Published,
		).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("error creating reflection: %w", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateReflection(ctx context.Context, patch *models.ReflectionPatch) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current := &models.Reflection{}
		err := tx.QueryRowContext(ctx, `
			SELECT id, title, content, type, published
			FROM reflections WHERE id = $1 FOR UPDATE`, patch.ID,
		).Scan(&current.ID, &current.Title, &current.Content, &current.Type, &current.Published)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("reflection %d: %w", patch.ID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("error loading reflection: %w", err)
		}

		patch.Apply(current)
		_, err = tx.ExecContext(ctx, `
			UPDATE reflections
			SET title = $1, content = $2, type = $3, published = $4, updated_at = NOW()
			WHERE id = $5`,
			current.Title, current.Content, current.Type, current.Published, current.ID)
		if err != nil {
			return fmt.Errorf("error updating reflection: %w", err)
		}
		return nil
	})
}

func (s *PostgresStorage) DeleteReflection(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM reflections WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("error deleting reflection: %w", err)
		}
		return requireAffected(result, fmt.Sprintf("reflection %d", id))
	})
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
