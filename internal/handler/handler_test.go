package handler_test

import (
    "bytes"
    "context"
    "database/sql"
    "mime/multipart"
    "net/http"
    "net/http/httptest"
    "os"
    "path/filepath"
    "strconv"
    "sync"
    "testing"
    "time"

    json "github.com/goccy/go-json"
    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "golang.org/x/crypto/bcrypt"

    "github.com/Nat-hsm/DragonRise/internal/analyzer"
    "github.com/Nat-hsm/DragonRise/internal/config"
    "github.com/Nat-hsm/DragonRise/internal/database"
    "github.com/Nat-hsm/DragonRise/internal/handler"
    "github.com/Nat-hsm/DragonRise/internal/ledger"
    "github.com/Nat-hsm/DragonRise/internal/model"
    "github.com/Nat-hsm/DragonRise/internal/peakhour"
    "github.com/Nat-hsm/DragonRise/internal/queue"
    "github.com/Nat-hsm/DragonRise/internal/repository"
    "github.com/Nat-hsm/DragonRise/internal/router"
    "github.com/Nat-hsm/DragonRise/internal/utils"
    "github.com/Nat-hsm/DragonRise/internal/validation"
)

const (
    secret        = "test-secret"
    adminPassword = "admin-pass-123"
)

var (
    // 10:00 at UTC+8, outside every default window.
    offPeakAt = time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC)
    // 09:00 at UTC+8, inside the default Morning Peak.
    peakAt = time.Date(2024, 3, 4, 1, 0, 0, 0, time.UTC)
)

type stubAnalyzer struct {
    res analyzer.Result
    err error
}

func (s *stubAnalyzer) Analyze(context.Context, model.ActivityKind, []byte, string) (analyzer.Result, error) {
    return s.res, s.err
}

type recordingPublisher struct{ events chan queue.ActivityRecordedEvent }

func (p *recordingPublisher) PublishActivityRecorded(_ context.Context, ev queue.ActivityRecordedEvent) error {
    p.events <- ev
    return nil
}

type countingCache struct {
    mu sync.Mutex
    n  int
}

func (c *countingCache) Invalidate(context.Context) error {
    c.mu.Lock()
    c.n++
    c.mu.Unlock()
    return nil
}

func (c *countingCache) count() int {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.n
}

type server struct {
    e        *echo.Echo
    db       *sql.DB
    now      time.Time
    analyzer *stubAnalyzer
    pub      *recordingPublisher
    cache    *countingCache
    uploads  string
}

func newServer(t *testing.T) *server {
    t.Helper()
    ctx := context.Background()
    db, err := database.OpenSQLite(":memory:")
    require.NoError(t, err)
    t.Cleanup(func() { db.Close() })
    require.NoError(t, database.Migrate(ctx, db, database.SQLite))
    hash, err := utils.HashPassword(adminPassword, bcrypt.MinCost)
    require.NoError(t, err)
    require.NoError(t, database.Seed(ctx, db, database.SQLite,
        &database.Admin{Username: "admin", PasswordHash: hash, House: "Black"}))

    s := &server{
        db:       db,
        now:      offPeakAt,
        analyzer: &stubAnalyzer{},
        pub:      &recordingPublisher{events: make(chan queue.ActivityRecordedEvent, 16)},
        cache:    &countingCache{},
        uploads:  t.TempDir(),
    }
    cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}

    users := repository.NewUserRepo(db)
    houses := repository.NewHouseRepo(db)
    activities := repository.NewActivityRepo(db)
    rules := repository.NewPeakHourRepo(db)
    led := ledger.New(repository.NewLedgerStore(db, database.SQLite), rules,
        peakhour.NewEngine(8, zerolog.Nop()),
        ledger.WithClock(func() time.Time { return s.now }))

    pub := &handler.PublicHandler{Users: users, Houses: houses, Activities: activities, Ledger: led}
    act := &handler.ActivityHandler{
        Ledger: led, Users: users, Activities: activities,
        Analyzer: s.analyzer, Publisher: s.pub, Cache: s.cache,
        UploadDir: s.uploads, MaxUploadBytes: 1 << 16,
    }
    adm := &handler.AdminHandler{Users: users, Houses: houses, Activities: activities, Rules: rules, Ledger: led, Cache: s.cache}

    pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    e := echo.New()
    e.Validator = validation.New()
    router.RegisterRoutes(e, db)
    router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, repository.NewTokenRepo(db)), secret)
    router.RegisterPublic(e, pub, pass)
    router.RegisterMember(e, act, pub, secret, router.MemberLimits{Activity: pass, Upload: pass})
    router.RegisterAdmin(e, adm, secret)
    s.e = e
    return s
}

func (s *server) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
    t.Helper()
    var rd *bytes.Reader
    if body != nil {
        bs, err := json.Marshal(body)
        require.NoError(t, err)
        rd = bytes.NewReader(bs)
    } else {
        rd = bytes.NewReader(nil)
    }
    req := httptest.NewRequest(method, path, rd)
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    if token != "" {
        req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
    }
    rec := httptest.NewRecorder()
    s.e.ServeHTTP(rec, req)
    out := map[string]any{}
    if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != echo.MIMETextPlainCharsetUTF8 {
        _ = json.Unmarshal(rec.Body.Bytes(), &out)
    }
    return rec, out
}

// register signs up a member and returns the access token and user id.
func (s *server) register(t *testing.T, username, house string) (string, uint64) {
    t.Helper()
    rec, body := s.do(t, http.MethodPost, "/v1/auth/register", echo.Map{
        "username": username, "password": "password-123", "house": house,
    }, "")
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    return token(body), uint64(body["user"].(map[string]any)["id"].(float64))
}

func (s *server) login(t *testing.T, username, password string) string {
    t.Helper()
    rec, body := s.do(t, http.MethodPost, "/v1/auth/login", echo.Map{"username": username, "password": password}, "")
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    return token(body)
}

func token(body map[string]any) string {
    return body["access"].(map[string]any)["token"].(string)
}

func num(m map[string]any, key string) int64 {
    f, _ := m[key].(float64)
    return int64(f)
}

func obj(m map[string]any, key string) map[string]any {
    o, _ := m[key].(map[string]any)
    return o
}

func items(m map[string]any) []any {
    is, _ := m["items"].([]any)
    return is
}

func TestHealthAndReady(t *testing.T) {
    s := newServer(t)
    rec, _ := s.do(t, http.MethodGet, "/healthz", nil, "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "ok", rec.Body.String())

    rec, body := s.do(t, http.MethodGet, "/readyz", nil, "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "ready", body["status"])
}

func TestRegisterLoginMe(t *testing.T) {
    s := newServer(t)
    tok, id := s.register(t, "alice", "Blue")
    require.NotEmpty(t, tok)

    rec, body := s.do(t, http.MethodPost, "/v1/auth/register", echo.Map{
        "username": "alice", "password": "password-123", "house": "Blue",
    }, "")
    assert.Equal(t, http.StatusConflict, rec.Code)
    assert.Equal(t, "conflict", body["error"])

    rec, _ = s.do(t, http.MethodPost, "/v1/auth/register", echo.Map{
        "username": "bob", "password": "password-123", "house": "Atlantis",
    }, "")
    assert.Equal(t, http.StatusBadRequest, rec.Code)

    rec, body = s.do(t, http.MethodPost, "/v1/auth/register", echo.Map{
        "username": "bob", "password": "short", "house": "Blue", "email": "not-an-email",
    }, "")
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "validation_failed", body["error"])
    assert.Len(t, body["fields"], 2)

    rec, _ = s.do(t, http.MethodPost, "/v1/auth/login", echo.Map{"username": "alice", "password": "wrong-password"}, "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    rec, _ = s.do(t, http.MethodPost, "/v1/auth/login", echo.Map{"username": "nobody", "password": "password-123"}, "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    tok = s.login(t, "alice", "password-123")
    rec, body = s.do(t, http.MethodGet, "/v1/me", nil, tok)
    require.Equal(t, http.StatusOK, rec.Code)
    user := obj(body, "user")
    assert.Equal(t, float64(id), user["id"])
    assert.Equal(t, "Blue", user["house"])
    assert.Equal(t, model.RoleMember, body["role"])
    assert.NotNil(t, user["last_login_at"])
    assert.NotContains(t, rec.Body.String(), "password")

    var members int64
    require.NoError(t, s.db.QueryRow("SELECT member_count FROM houses WHERE name='Blue'").Scan(&members))
    assert.EqualValues(t, 1, members)
}

func TestRefreshRotatesAndLogout(t *testing.T) {
    s := newServer(t)
    rec, body := s.do(t, http.MethodPost, "/v1/auth/register", echo.Map{
        "username": "alice", "password": "password-123", "house": "Blue",
    }, "")
    require.Equal(t, http.StatusCreated, rec.Code)
    refresh := obj(body, "refresh")["token"].(string)

    rec, body = s.do(t, http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": refresh}, "")
    require.Equal(t, http.StatusOK, rec.Code)
    rotated := obj(body, "refresh")["token"].(string)
    assert.NotEqual(t, refresh, rotated)

    rec, _ = s.do(t, http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": refresh}, "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code, "a rotated token cannot be reused")

    rec, _ = s.do(t, http.MethodPost, "/v1/auth/logout", nil, token(body))
    assert.Equal(t, http.StatusNoContent, rec.Code)
    rec, _ = s.do(t, http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": rotated}, "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    rec, _ = s.do(t, http.MethodPost, "/v1/auth/logout", nil, "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
    s := newServer(t)
    rec, _ := s.do(t, http.MethodPost, "/v1/activities/climb", echo.Map{"quantity": 1}, "")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    rec, _ = s.do(t, http.MethodGet, "/v1/admin/overview", nil, "garbage")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecordActivitiesUpdatesRankings(t *testing.T) {
    s := newServer(t)
    alice, _ := s.register(t, "alice", "Blue")
    bob, _ := s.register(t, "bob", "Green")

    rec, body := s.do(t, http.MethodPost, "/v1/activities/climb", echo.Map{"quantity": 5, "notes": "stairs"}, alice)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    entry := obj(body, "entry")
    assert.EqualValues(t, 50, entry["points"])
    assert.EqualValues(t, 1, entry["multiplier"])
    assert.Equal(t, false, body["peak"])
    assert.Equal(t, "Logged 5 flights. +50 points!", body["message"])
    assert.EqualValues(t, 50, num(obj(body, "totals"), "total_points"))

    rec, body = s.do(t, http.MethodPost, "/v1/activities/stand", echo.Map{"quantity": 60}, alice)
    require.Equal(t, http.StatusCreated, rec.Code)
    assert.EqualValues(t, 110, num(obj(body, "totals"), "total_points"))
    assert.EqualValues(t, 5, num(obj(body, "totals"), "total_flights"))
    assert.EqualValues(t, 60, num(obj(body, "totals"), "total_standing_minutes"))

    s.now = peakAt
    rec, body = s.do(t, http.MethodPost, "/v1/activities/steps", echo.Map{"quantity": 1050}, bob)
    require.Equal(t, http.StatusCreated, rec.Code)
    assert.EqualValues(t, 20, obj(body, "entry")["points"])
    assert.Equal(t, true, body["peak"])
    assert.Contains(t, body["message"], "2x")
    assert.Equal(t, "Morning Peak", obj(body, "entry")["peak_name"])

    rec, body = s.do(t, http.MethodGet, "/v1/houses", nil, "")
    require.Equal(t, http.StatusOK, rec.Code)
    hs := items(body)
    require.Len(t, hs, len(model.DefaultHouses))
    first := hs[0].(map[string]any)
    assert.Equal(t, "Blue", first["name"])
    assert.EqualValues(t, 1, first["rank"])
    assert.EqualValues(t, 110, first["total_points"])
    assert.Equal(t, "Green", hs[1].(map[string]any)["name"])

    rec, body = s.do(t, http.MethodGet, "/v1/leaderboard?limit=1", nil, "")
    require.Equal(t, http.StatusOK, rec.Code)
    lb := items(body)
    require.Len(t, lb, 1)
    assert.Equal(t, "alice", lb[0].(map[string]any)["username"])

    rec, body = s.do(t, http.MethodGet, "/v1/activities?kind=climb", nil, alice)
    require.Equal(t, http.StatusOK, rec.Code)
    require.Len(t, items(body), 1)
    assert.Equal(t, "stairs", items(body)[0].(map[string]any)["notes"])

    assert.Equal(t, 3, s.cache.count())
    peakNames := map[string]string{}
    for i := 0; i < 3; i++ {
        select {
        case ev := <-s.pub.events:
            assert.NotZero(t, ev.EntryID)
            assert.NotEmpty(t, ev.House)
            peakNames[ev.Kind] = ev.PeakName
        case <-time.After(2 * time.Second):
            t.Fatal("activity event not published")
        }
    }
    assert.Equal(t, map[string]string{"climb": "", "stand": "", "steps": "Morning Peak"}, peakNames)
}

func TestRecordRejectsInvalidQuantity(t *testing.T) {
    s := newServer(t)
    alice, _ := s.register(t, "alice", "Blue")

    rec, body := s.do(t, http.MethodPost, "/v1/activities/climb", echo.Map{"quantity": 1001}, alice)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "quantity", body["field"])

    rec, _ = s.do(t, http.MethodPost, "/v1/activities/stand", echo.Map{"quantity": 0}, alice)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    rec, _ = s.do(t, http.MethodPost, "/v1/activities/steps", echo.Map{"quantity": -5}, alice)
    assert.Equal(t, http.StatusBadRequest, rec.Code)

    rec, body = s.do(t, http.MethodGet, "/v1/activities", nil, alice)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Empty(t, items(body))
    rec, _ = s.do(t, http.MethodGet, "/v1/activities?kind=swim", nil, alice)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Zero(t, s.cache.count())
}

func TestRecordForDeletedHouseIsBrokenReference(t *testing.T) {
    s := newServer(t)
    alice, _ := s.register(t, "alice", "Blue")
    _, err := s.db.Exec("UPDATE users SET house='Ghost' WHERE username='alice'")
    require.NoError(t, err)

    rec, body := s.do(t, http.MethodPost, "/v1/activities/climb", echo.Map{"quantity": 1}, alice)
    assert.Equal(t, http.StatusConflict, rec.Code)
    assert.Equal(t, "broken_reference", body["error"])
}

func pngBytes() []byte {
    return append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
}

func (s *server) upload(t *testing.T, kind, filename string, content []byte, tok string) (*httptest.ResponseRecorder, map[string]any) {
    t.Helper()
    var buf bytes.Buffer
    mw := multipart.NewWriter(&buf)
    fw, err := mw.CreateFormFile("screenshot", filename)
    require.NoError(t, err)
    _, err = fw.Write(content)
    require.NoError(t, err)
    require.NoError(t, mw.Close())

    req := httptest.NewRequest(http.MethodPost, "/v1/activities/"+kind+"/screenshot", &buf)
    req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
    req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
    rec := httptest.NewRecorder()
    s.e.ServeHTTP(rec, req)
    out := map[string]any{}
    _ = json.Unmarshal(rec.Body.Bytes(), &out)
    return rec, out
}

func TestScreenshotUpload(t *testing.T) {
    s := newServer(t)
    alice, _ := s.register(t, "alice", "Blue")

    at := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
    s.analyzer.res = analyzer.Result{Success: true, Quantity: 3, Timestamp: &at}
    rec, body := s.upload(t, "climb", "phone.png", pngBytes(), alice)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    entry := obj(body, "entry")
    assert.EqualValues(t, 30, entry["points"])
    assert.Equal(t, model.SourceScreenshot, entry["source"])
    assert.Contains(t, entry["notes"], "2024-03-04 09:30")
    _, err := os.Stat(filepath.Join(s.uploads, body["file"].(string)))
    assert.NoError(t, err)

    rec, _ = s.upload(t, "climb", "phone.bmp", pngBytes(), alice)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    rec, _ = s.upload(t, "climb", "notes.png", []byte("plain text, not an image"), alice)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    rec, _ = s.upload(t, "swim", "phone.png", pngBytes(), alice)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    rec, _ = s.upload(t, "climb", "big.png", append(pngBytes(), make([]byte, 1<<16)...), alice)
    assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

    s.analyzer.res = analyzer.Result{Success: false, Error: "no step count visible"}
    rec, body = s.upload(t, "steps", "phone.png", pngBytes(), alice)
    assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
    assert.Equal(t, "no step count visible", body["message"])

    s.analyzer.err = analyzer.ErrUnavailable
    rec, _ = s.upload(t, "steps", "phone.png", pngBytes(), alice)
    assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

    s.analyzer.res, s.analyzer.err = analyzer.Result{Success: true, Quantity: 1001}, nil
    rec, _ = s.upload(t, "climb", "phone.jpg", pngBytes(), alice)
    assert.Equal(t, http.StatusBadRequest, rec.Code, "screenshot quantities obey the same ceilings")

    var points int64
    require.NoError(t, s.db.QueryRow("SELECT total_points FROM users WHERE username='alice'").Scan(&points))
    assert.EqualValues(t, 30, points)
}

func TestUserStatsAccess(t *testing.T) {
    s := newServer(t)
    alice, aliceID := s.register(t, "alice", "Blue")
    bob, _ := s.register(t, "bob", "Blue")
    admin := s.login(t, "admin", adminPassword)

    rec, _ := s.do(t, http.MethodPost, "/v1/activities/climb", echo.Map{"quantity": 2}, alice)
    require.Equal(t, http.StatusCreated, rec.Code)

    path := "/v1/users/" + strconv.FormatUint(aliceID, 10) + "/stats"
    rec, body := s.do(t, http.MethodGet, path, nil, alice)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.EqualValues(t, 1, body["rank_in_house"])
    assert.Len(t, body["summary"], 1)
    assert.Len(t, body["recent"], 1)

    rec, _ = s.do(t, http.MethodGet, path, nil, bob)
    assert.Equal(t, http.StatusForbidden, rec.Code)
    rec, _ = s.do(t, http.MethodGet, path, nil, admin)
    assert.Equal(t, http.StatusOK, rec.Code)
    rec, _ = s.do(t, http.MethodGet, "/v1/users/9999/stats", nil, admin)
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCurrentPeak(t *testing.T) {
    s := newServer(t)
    rec, body := s.do(t, http.MethodGet, "/v1/peak-hours/current", nil, "")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, false, body["is_peak"])
    assert.EqualValues(t, 1, body["multiplier"])
    assert.Equal(t, "10:00", body["local_time"])
    assert.Contains(t, body["schedule"], "8:45am-9:15am")

    s.now = peakAt
    _, body = s.do(t, http.MethodGet, "/v1/peak-hours/current", nil, "")
    assert.Equal(t, true, body["is_peak"])
    assert.Equal(t, "Morning Peak", body["name"])
    assert.Equal(t, "Morning Peak active: 2x points!", body["message"])
}

func TestAdminPeakHours(t *testing.T) {
    s := newServer(t)
    member, _ := s.register(t, "alice", "Blue")
    admin := s.login(t, "admin", adminPassword)

    rec, _ := s.do(t, http.MethodGet, "/v1/admin/peak-hours", nil, member)
    assert.Equal(t, http.StatusForbidden, rec.Code)

    rec, body := s.do(t, http.MethodGet, "/v1/admin/peak-hours", nil, admin)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Len(t, items(body), 3)

    rec, body = s.do(t, http.MethodPost, "/v1/admin/peak-hours", echo.Map{
        "name": "Coffee Run", "start_time": "09:30", "end_time": "10:30", "multiplier": 3,
    }, admin)
    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    id := strconv.FormatInt(num(body, "id"), 10)
    assert.Equal(t, "09:30", body["start_time"])
    assert.Equal(t, true, body["is_active"])

    // 10:00 local now falls inside the new window.
    rec, body = s.do(t, http.MethodPost, "/v1/activities/climb", echo.Map{"quantity": 1}, member)
    require.Equal(t, http.StatusCreated, rec.Code)
    assert.EqualValues(t, 30, obj(body, "entry")["points"])

    rec, body = s.do(t, http.MethodPost, "/v1/admin/peak-hours/"+id+"/toggle", nil, admin)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, false, body["is_active"])

    rec, body = s.do(t, http.MethodPut, "/v1/admin/peak-hours/"+id, echo.Map{
        "name": "Coffee Run", "start_time": "09:30", "end_time": "10:45", "multiplier": 4, "is_active": false,
    }, admin)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "10:45", body["end_time"])
    assert.EqualValues(t, 4, body["multiplier"])

    rec, body = s.do(t, http.MethodPut, "/v1/admin/peak-hours/"+id, echo.Map{
        "name": "Coffee Run", "start_time": "09:30", "end_time": "11:00", "multiplier": 4,
    }, admin)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "11:00", body["end_time"])
    assert.Equal(t, false, body["is_active"], "omitted is_active keeps the stored value")

    bad := []echo.Map{
        {"name": "Backwards", "start_time": "11:00", "end_time": "10:00", "multiplier": 2},
        {"name": "Equal", "start_time": "11:00", "end_time": "11:00", "multiplier": 2},
        {"name": "Greedy", "start_time": "11:00", "end_time": "12:00", "multiplier": 11},
        {"name": "Clock", "start_time": "25:00", "end_time": "26:00", "multiplier": 2},
        {"start_time": "11:00", "end_time": "12:00", "multiplier": 2},
    }
    for _, b := range bad {
        rec, _ = s.do(t, http.MethodPost, "/v1/admin/peak-hours", b, admin)
        assert.Equal(t, http.StatusBadRequest, rec.Code, b)
    }

    rec, _ = s.do(t, http.MethodPut, "/v1/admin/peak-hours/999", echo.Map{
        "name": "Missing", "start_time": "09:30", "end_time": "10:30", "multiplier": 2,
    }, admin)
    assert.Equal(t, http.StatusNotFound, rec.Code)
    rec, _ = s.do(t, http.MethodPost, "/v1/admin/peak-hours/999/toggle", nil, admin)
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminOverview(t *testing.T) {
    s := newServer(t)
    alice, _ := s.register(t, "alice", "Blue")
    admin := s.login(t, "admin", adminPassword)
    rec, _ := s.do(t, http.MethodPost, "/v1/activities/climb", echo.Map{"quantity": 4}, alice)
    require.Equal(t, http.StatusCreated, rec.Code)

    rec, body := s.do(t, http.MethodGet, "/v1/admin/overview", nil, admin)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Len(t, body["users"], 2)
    assert.Len(t, body["houses"], len(model.DefaultHouses))
    assert.Len(t, body["peak_hours"], 3)
    assert.EqualValues(t, 1, body["entries"])
    assert.EqualValues(t, 40, num(obj(body, "totals"), "total_points"))
}

func TestAdminDeleteUserAndResetHouse(t *testing.T) {
    s := newServer(t)
    alice, aliceID := s.register(t, "alice", "Blue")
    bob, _ := s.register(t, "bob", "Blue")
    admin := s.login(t, "admin", adminPassword)

    for _, tok := range []string{alice, bob} {
        rec, _ := s.do(t, http.MethodPost, "/v1/activities/climb", echo.Map{"quantity": 2}, tok)
        require.Equal(t, http.StatusCreated, rec.Code)
    }

    rec, _ := s.do(t, http.MethodDelete, "/v1/admin/users/"+strconv.FormatUint(aliceID, 10), nil, bob)
    assert.Equal(t, http.StatusForbidden, rec.Code)

    rec, body := s.do(t, http.MethodDelete, "/v1/admin/users/"+strconv.FormatUint(aliceID, 10), nil, admin)
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.EqualValues(t, 20, body["points_removed"])

    var points, members int64
    require.NoError(t, s.db.QueryRow("SELECT total_points, member_count FROM houses WHERE name='Blue'").Scan(&points, &members))
    assert.EqualValues(t, 20, points)
    assert.EqualValues(t, 1, members)

    rec, _ = s.do(t, http.MethodDelete, "/v1/admin/users/"+strconv.FormatUint(aliceID, 10), nil, admin)
    assert.Equal(t, http.StatusNotFound, rec.Code)

    var adminID uint64
    require.NoError(t, s.db.QueryRow("SELECT id FROM users WHERE username='admin'").Scan(&adminID))
    rec, _ = s.do(t, http.MethodDelete, "/v1/admin/users/"+strconv.FormatUint(adminID, 10), nil, admin)
    assert.Equal(t, http.StatusForbidden, rec.Code)

    var blueID uint64
    require.NoError(t, s.db.QueryRow("SELECT id FROM houses WHERE name='Blue'").Scan(&blueID))
    rec, body = s.do(t, http.MethodPost, "/v1/admin/houses/"+strconv.FormatUint(blueID, 10)+"/reset", nil, admin)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "Blue", body["house"])
    assert.EqualValues(t, 20, body["previous_points"])
    assert.EqualValues(t, 1, body["members_reset"])

    require.NoError(t, s.db.QueryRow("SELECT total_points FROM houses WHERE name='Blue'").Scan(&points))
    assert.Zero(t, points)
    rec, _ = s.do(t, http.MethodPost, "/v1/admin/houses/999/reset", nil, admin)
    assert.Equal(t, http.StatusNotFound, rec.Code)
    rec, _ = s.do(t, http.MethodPost, "/v1/admin/houses/abc/reset", nil, admin)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}
