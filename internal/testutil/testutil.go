package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/auth"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/pkg/crypto"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestPassword is the password of every fixture user.
const TestPassword = "testpassword123"

// SetupTestDB creates an in-memory SQLite database for testing. The
// database is shared between the pool's connections and the pool holds a
// single connection, so concurrent transactions serialize as they would
// under row locks.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(
		&models.User{},
		&models.Agent{},
		&models.Client{},
		&models.MagicLink{},
		&models.FormSubmission{},
		&models.SubmissionArchive{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CreateTestUser creates an active user with the given role.
func CreateTestUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()
	return CreateTestUserWithEmail(t, db, role, string(role)+"-"+uuid.New().String()[:8]+"@example.com")
}

func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, role models.Role, email string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:        email,
		PasswordHash: hash,
		Name:         "Test " + string(role),
		Role:         role,
		IsActive:     true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// DeactivateUser flips is_active off. The column defaults to true, so
// this cannot be done through Create.
func DeactivateUser(t *testing.T, db *gorm.DB, user *models.User) {
	t.Helper()
	if err := db.Model(user).Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to deactivate user: %v", err)
	}
	user.IsActive = false
}

// CreateTestAgent creates an agent principal and its Agent row.
func CreateTestAgent(t *testing.T, db *gorm.DB) (*models.User, *models.Agent) {
	t.Helper()

	user := CreateTestUser(t, db, models.RoleAgent)
	agent := &models.Agent{
		ID:     user.ID,
		Status: models.AgentStatusActive,
		Phone:  "+15550100",
	}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("failed to create test agent: %v", err)
	}

	return user, agent
}

// CreateTestClient creates an active client owned by agentID.
func CreateTestClient(t *testing.T, db *gorm.DB, agentID uuid.UUID) *models.Client {
	t.Helper()

	client := &models.Client{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:    "client-" + uuid.New().String()[:8] + "@example.com",
		FullName: "Test Client",
		Company:  "Acme",
		AgentID:  agentID,
		Status:   models.ClientStatusActive,
	}

	if err := db.Create(client).Error; err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}

	return client
}

// CreateTestLink inserts a link directly and returns it with its raw token.
func CreateTestLink(t *testing.T, db *gorm.DB, client *models.Client, status models.LinkStatus, expiresAt *time.Time) (*models.MagicLink, string) {
	t.Helper()

	token, err := crypto.NewToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	link := &models.MagicLink{
		Base: models.Base{
			ID: uuid.New(),
		},
		TokenHash: crypto.HashToken(token),
		ClientID:  client.ID,
		AgentID:   client.AgentID,
		Status:    status,
		ExpiresAt: expiresAt,
	}
	if status == models.LinkStatusUsed {
		usedAt := time.Now().UTC()
		link.UsedAt = &usedAt
	}

	if err := db.Create(link).Error; err != nil {
		t.Fatalf("failed to create test link: %v", err)
	}

	return link, token
}

// CreateTestSubmission records a submission against link without touching
// the link's status.
func CreateTestSubmission(t *testing.T, db *gorm.DB, link *models.MagicLink) *models.FormSubmission {
	t.Helper()

	sub := &models.FormSubmission{
		ID:          uuid.New(),
		MagicLinkID: link.ID,
		Data:        datatypes.JSON(`{"answer":"42"}`),
		SubmittedAt: time.Now().UTC(),
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("failed to create test submission: %v", err)
	}

	return sub
}

// CountSubmissions returns how many submissions reference linkID.
func CountSubmissions(t *testing.T, db *gorm.DB, linkID uuid.UUID) int64 {
	t.Helper()

	var n int64
	if err := db.Model(&models.FormSubmission{}).Where("magic_link_id = ?", linkID).Count(&n).Error; err != nil {
		t.Fatalf("failed to count submissions: %v", err)
	}
	return n
}

// ReloadLink reads link back from the database; nil when it was deleted.
func ReloadLink(t *testing.T, db *gorm.DB, id uuid.UUID) *models.MagicLink {
	t.Helper()

	var links []models.MagicLink
	if err := db.Where("id = ?", id).Limit(1).Find(&links).Error; err != nil {
		t.Fatalf("failed to reload link: %v", err)
	}
	if len(links) == 0 {
		return nil
	}
	return &links[0]
}

// Principal builds the gate's view of user.
func Principal(user *models.User) *access.Principal {
	return &access.Principal{ID: user.ID, Role: user.Role, Email: user.Email}
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds the principals every lifecycle test needs: staff, two
// agents with one client each, and the end-client account of the first
// agent's client.
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService

	Admin       *models.User
	Support     *models.User
	Agent       *models.User
	OtherAgent  *models.User
	Client      *models.Client
	OtherClient *models.Client
	ClientUser  *models.User

	AdminToken      string
	SupportToken    string
	AgentToken      string
	OtherAgentToken string
	ClientUserToken string
}

// NewTestContext creates a complete test setup with DB, principals and
// session tokens.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()

	admin := CreateTestUser(t, db, models.RoleAdmin)
	support := CreateTestUser(t, db, models.RoleSupport)
	agent, _ := CreateTestAgent(t, db)
	otherAgent, _ := CreateTestAgent(t, db)
	client := CreateTestClient(t, db, agent.ID)
	otherClient := CreateTestClient(t, db, otherAgent.ID)
	clientUser := CreateTestUserWithEmail(t, db, models.RoleUser, client.Email)

	return &TestSetup{
		DB:              db,
		JWTService:      jwtService,
		Admin:           admin,
		Support:         support,
		Agent:           agent,
		OtherAgent:      otherAgent,
		Client:          client,
		OtherClient:     otherClient,
		ClientUser:      clientUser,
		AdminToken:      GenerateTestToken(t, jwtService, admin),
		SupportToken:    GenerateTestToken(t, jwtService, support),
		AgentToken:      GenerateTestToken(t, jwtService, agent),
		OtherAgentToken: GenerateTestToken(t, jwtService, otherAgent),
		ClientUserToken: GenerateTestToken(t, jwtService, clientUser),
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
