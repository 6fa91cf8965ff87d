package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

// ErrAuthExpired means the professional's external calendar credentials are
// missing, expired, or revoked. The caller should surface a reconnect-required
// state; no sync mutation happens under this error.
var ErrAuthExpired = errors.New("calendarsync: calendar authorization expired, reconnect required")

// TokenSourceProvider yields OAuth token sources per professional.
type TokenSourceProvider interface {
	TokenSource(ctx context.Context, professionalID uuid.UUID) (oauth2.TokenSource, error)
}

// Account is a professional's connected calendar credentials. Obtaining and
// refreshing the grant happens outside this core; we only read it.
type Account struct {
	ProfessionalID uuid.UUID
	AccessToken    string
	RefreshToken   string
	TokenExpiry    time.Time
}

// AccountRepository reads connected calendar accounts.
type AccountRepository interface {
	GetByProfessional(ctx context.Context, professionalID uuid.UUID) (*Account, error)
}

// PGAccountRepository reads accounts from Postgres.
type PGAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPGAccountRepository(pool *pgxpool.Pool) *PGAccountRepository {
	if pool == nil {
		panic("calendarsync: pgx pool required")
	}
	return &PGAccountRepository{pool: pool}
}

func (r *PGAccountRepository) GetByProfessional(ctx context.Context, professionalID uuid.UUID) (*Account, error) {
	query := `SELECT professional_id, access_token, refresh_token, token_expiry
		FROM calendar_accounts WHERE professional_id = $1`
	var a Account
	err := r.pool.QueryRow(ctx, query, professionalID).
		Scan(&a.ProfessionalID, &a.AccessToken, &a.RefreshToken, &a.TokenExpiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAuthExpired
		}
		return nil, fmt.Errorf("calendarsync: load account: %w", err)
	}
	return &a, nil
}

// ListProfessionals returns every professional with a connected account.
func (r *PGAccountRepository) ListProfessionals(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT professional_id FROM calendar_accounts ORDER BY professional_id`)
	if err != nil {
		return nil, fmt.Errorf("calendarsync: list accounts: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("calendarsync: scan account: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// OAuthService turns stored credentials into refreshing token sources.
type OAuthService struct {
	conf     *oauth2.Config
	accounts AccountRepository
}

// NewOAuthService builds the service with Google's token endpoint.
func NewOAuthService(clientID, clientSecret string, accounts AccountRepository) *OAuthService {
	return &OAuthService{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
		},
		accounts: accounts,
	}
}

// TokenSource returns a self-refreshing token source for the professional's
// connected account.
func (s *OAuthService) TokenSource(ctx context.Context, professionalID uuid.UUID) (oauth2.TokenSource, error) {
	account, err := s.accounts.GetByProfessional(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	token := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		Expiry:       account.TokenExpiry,
	}
	return s.conf.TokenSource(ctx, token), nil
}
