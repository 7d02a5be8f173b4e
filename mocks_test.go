package activation_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-activation"
	"github.com/goliatone/go-activation/config"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	providerAcme     = "acme"
	providerOther    = "other"
	providerBroken   = "broken"
	providerInternal = "internal"

	acmeMapping = "-123@test.com=role1,@testing.com=role2"
)

// MockMailer implements activation.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendActivationEmail(ctx context.Context, user *activation.User, link string) error {
	args := m.Called(ctx, user, link)
	return args.Error(0)
}

// MockMappingSource implements activation.MappingSource
type MockMappingSource struct {
	mock.Mock
}

func (m *MockMappingSource) RoleMapping(ctx context.Context, provider string) (string, error) {
	args := m.Called(ctx, provider)
	return args.String(0), args.Error(1)
}

type captureSink struct {
	mu     sync.Mutex
	events []activation.ActivityEvent
}

func (s *captureSink) Record(_ context.Context, event activation.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) count(eventType activation.ActivityEventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// staleUsers reports every account as unverified, like a read taken before
// a concurrent verification committed.
type staleUsers struct {
	activation.Users
}

func (s staleUsers) FindByDigestTx(ctx context.Context, tx bun.IDB, digest, provider string) (*activation.User, error) {
	user, err := s.Users.FindByDigestTx(ctx, tx, digest, provider)
	if err == nil {
		user.EmailVerified = false
	}
	return user, err
}

// staleDigestUsers answers lookups of digest with a snapshot of user taken
// before the digest was rotated.
type staleDigestUsers struct {
	activation.Users
	digest string
	user   activation.User
}

func (s staleDigestUsers) FindByDigestTx(ctx context.Context, tx bun.IDB, digest, provider string) (*activation.User, error) {
	if digest == s.digest {
		user := s.user
		return &user, nil
	}
	return s.Users.FindByDigestTx(ctx, tx, digest, provider)
}

// failingUsers fails every insert with err.
type failingUsers struct {
	activation.Users
	err error
}

func (f failingUsers) RegisterTx(context.Context, bun.IDB, *activation.User) (*activation.User, error) {
	return nil, f.err
}

// wrappedRepo swaps the users repository and lets tests intercept RunInTx.
type wrappedRepo struct {
	activation.RepositoryManager
	users   activation.Users
	runInTx func(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

func (r wrappedRepo) Users() activation.Users {
	if r.users != nil {
		return r.users
	}
	return r.RepositoryManager.Users()
}

func (r wrappedRepo) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	if r.runInTx != nil {
		return r.runInTx(ctx, opts, f)
	}
	return r.RepositoryManager.RunInTx(ctx, opts, f)
}

var (
	errDatabaseLocked = errors.New("database is locked (5) (SQLITE_BUSY)")
	errCommitFailed   = errors.New("sql: transaction has already been committed or rolled back")
)

type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}

type testEnv struct {
	db       *bun.DB
	repo     activation.RepositoryManager
	mailer   *MockMailer
	sink     *captureSink
	config   activation.BaseConfig
	workflow *activation.Workflow
	now      time.Time
}

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	require.NoError(t, activation.CreateSchema(context.Background(), bunDB))

	t.Cleanup(func() {
		_ = bunDB.Close()
	})

	return bunDB
}

// setupFileDB opens a database file with the DSN options the binary uses and
// no connection limit, so transactions from different goroutines overlap.
func setupFileDB(t *testing.T) *bun.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "activation.db")
	dsn := strings.Replace(config.DefaultDatabaseDSN, "activation.db", path, 1)

	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	require.NoError(t, activation.CreateSchema(context.Background(), bunDB))

	t.Cleanup(func() {
		_ = bunDB.Close()
	})

	return bunDB
}

func setupEnv(t *testing.T, opts ...activation.WorkflowOption) *testEnv {
	t.Helper()
	return setupEnvWithDB(t, setupDB(t), opts...)
}

func setupEnvWithDB(t *testing.T, db *bun.DB, opts ...activation.WorkflowOption) *testEnv {
	t.Helper()

	env := &testEnv{
		db:     db,
		mailer: &MockMailer{},
		sink:   &captureSink{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.repo = activation.NewRepositoryManager(env.db)

	env.seedRoles(t, providerAcme, activation.RoleNameUser, activation.RoleNamePending, "role1", "role2")
	env.seedRoles(t, providerOther, activation.RoleNameUser)
	env.seedRoles(t, providerBroken, activation.RoleNameUser)
	env.seedRoles(t, providerInternal, activation.RoleNameUser, "role1")

	env.mailer.On("SendActivationEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	env.config = activation.DefaultConfig()
	env.config.VerificationBypassProviders = []string{providerInternal}

	base := []activation.WorkflowOption{
		activation.WithConfig(env.config),
		activation.WithMappingSource(activation.StaticMappings{
			providerAcme:     acmeMapping,
			providerBroken:   "@test.com=ghost",
			providerInternal: "@corp.com=role1",
		}),
		activation.WithMailer(env.mailer),
		activation.WithActivitySink(env.sink),
		activation.WithLogger(silentLogger{}),
		activation.WithClock(func() time.Time { return env.now }),
	}

	env.workflow = activation.NewWorkflow(env.repo, append(base, opts...)...)

	return env
}

// workflowFor builds a workflow over repo with the same collaborators as the
// environment workflow.
func (e *testEnv) workflowFor(repo activation.RepositoryManager, mailer activation.Mailer) *activation.Workflow {
	return activation.NewWorkflow(repo,
		activation.WithConfig(e.config),
		activation.WithMappingSource(activation.StaticMappings{providerAcme: acmeMapping}),
		activation.WithMailer(mailer),
		activation.WithActivitySink(e.sink),
		activation.WithLogger(silentLogger{}),
	)
}

func (e *testEnv) seedRoles(t *testing.T, provider string, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := e.repo.Roles().Register(context.Background(), &activation.Role{
			Name:     name,
			Provider: provider,
		})
		require.NoError(t, err)
	}
}

func (e *testEnv) register(t *testing.T, email, provider, role string) *activation.RegisterAccountResponse {
	t.Helper()
	resp, err := e.workflow.Register(context.Background(), activation.RegisterAccountMessage{
		Email:    email,
		Provider: provider,
		Role:     role,
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func (e *testEnv) userByDigest(t *testing.T, digest, provider string) *activation.User {
	t.Helper()
	user, err := e.repo.Users().FindByDigest(context.Background(), digest, provider)
	require.NoError(t, err)
	return user
}

func (e *testEnv) roleName(t *testing.T, user *activation.User) string {
	t.Helper()
	if user.RoleID == nil {
		return ""
	}
	role, err := e.repo.Roles().FindByIDTx(context.Background(), e.db, *user.RoleID, user.Provider)
	require.NoError(t, err)
	return role.Name
}
