package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
)

// BackendPrefix is the API path prefix served by FakeBackend.
const BackendPrefix = "/api"

const fakeBackendKey = "fake-backend-signing-key"

// FakeUser is a doctor account known to FakeBackend.
type FakeUser struct {
	ID             int
	Username       string
	Password       string
	Email          string
	FirstName      string
	LastName       string
	Hospital       string
	Specialty      string
	Role           string
	LicenseNumber  string
	PhoneNumber    string
	ProfilePicture string
}

// RecordedRequest is a request FakeBackend received.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
	ContentType   string
	UserAgent     string
}

type fakeImage struct {
	ID         string
	DoctorID   int
	File       string
	Content    []byte
	CustomID   string
	UploadedAt time.Time
	AnalysisID string
}

type fakeAnalysis struct {
	ID             string
	ImageID        string
	Classification string
	Findings       string
	AnalyzedAt     time.Time
}

type fakeReview struct {
	ID         string
	AnalysisID string
	DoctorID   int
	Rating     int
	Comments   string
	ReviewedAt time.Time
}

type failure struct {
	method string
	path   string
	status int
	body   string
}

// FakeBackend is an httptest server that behaves like the Oculus Django API closely enough
// for client tests: SimpleJWT-style HS256 tokens with refresh rotation and blacklisting,
// the doctor endpoints, images, analysis results and reviews.
type FakeBackend struct {
	Server *httptest.Server

	mu         sync.Mutex
	users      map[string]*FakeUser
	nextUserID int
	images     map[string]*fakeImage
	analyses   map[string]*fakeAnalysis
	reviews    map[string]*fakeReview
	blacklist  map[string]bool
	accessGen  int
	refreshGen int
	failures   []failure
	requests   []RecordedRequest
	now        func() time.Time

	refreshCalls atomic.Int64
	refreshDelay atomic.Int64
	// Classification is returned for every uploaded image; defaults to "normal".
	Classification string
}

// NewFakeBackend starts a FakeBackend and closes it when the test ends.
func NewFakeBackend(t TestingTB) *FakeBackend {
	t.Helper()
	b := &FakeBackend{
		users:          map[string]*FakeUser{},
		nextUserID:     1,
		images:         map[string]*fakeImage{},
		analyses:       map[string]*fakeAnalysis{},
		reviews:        map[string]*fakeReview{},
		blacklist:      map[string]bool{},
		now:            time.Now,
		Classification: "normal",
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the API base URL, including the prefix.
func (b *FakeBackend) URL() string { return b.Server.URL + BackendPrefix }

// AddUser registers a user and returns it with its id assigned.
func (b *FakeBackend) AddUser(u FakeUser) FakeUser {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.addUserLocked(u)
}

func (b *FakeBackend) addUserLocked(u FakeUser) *FakeUser {
	u.ID = b.nextUserID
	b.nextUserID++
	if u.Role == "" {
		u.Role = "general"
	}
	cp := u
	b.users[u.Username] = &cp
	return &cp
}

// IssueTokens mints a valid token pair for a registered user.
func (b *FakeBackend) IssueTokens(username string) domainauth.Tokens {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[username]
	if !ok {
		panic(fmt.Sprintf("fake backend: unknown user %q", username))
	}
	return b.issueLocked(u.ID)
}

// ExpireAccessTokens invalidates every access token issued so far.
func (b *FakeBackend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessGen++
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (b *FakeBackend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshGen++
}

// SetRefreshDelay delays every refresh response, so concurrent 401s overlap.
func (b *FakeBackend) SetRefreshDelay(d time.Duration) { b.refreshDelay.Store(int64(d)) }

// RefreshCount is the number of requests the refresh endpoint received.
func (b *FakeBackend) RefreshCount() int { return int(b.refreshCalls.Load()) }

// FailNext makes the next request matching method and path (relative to the prefix) fail.
func (b *FakeBackend) FailNext(method, path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, failure{method: method, path: path, status: status, body: body})
}

// Requests returns the requests received so far.
func (b *FakeBackend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests...)
}

// RequestsTo returns the recorded requests for one method and path (relative to the prefix).
func (b *FakeBackend) RequestsTo(method, path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == BackendPrefix+path {
			out = append(out, r)
		}
	}
	return out
}

// User returns the current state of a registered user.
func (b *FakeBackend) User(username string) (FakeUser, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[username]
	if !ok {
		return FakeUser{}, false
	}
	return *u, true
}

func (b *FakeBackend) routes() http.Handler {
	mux := http.NewServeMux()
	p := BackendPrefix
	mux.HandleFunc("POST "+p+"/token/", b.handleLogin)
	mux.HandleFunc("POST "+p+"/token/refresh/", b.handleRefresh)
	mux.HandleFunc("POST "+p+"/doctors/signup/", b.handleSignup)
	mux.HandleFunc("GET "+p+"/doctors/me/", b.authed(b.handleMe))
	mux.HandleFunc("PATCH "+p+"/doctors/update_profile/", b.authed(b.handleUpdateProfile))
	mux.HandleFunc("PUT "+p+"/doctors/update_profile/", b.authed(b.handleUpdateProfile))
	mux.HandleFunc("GET "+p+"/oct-images/", b.authed(b.handleListImages))
	mux.HandleFunc("POST "+p+"/oct-images/", b.authed(b.handleUploadImage))
	mux.HandleFunc("GET "+p+"/oct-images/{id}/", b.authed(b.handleGetImage))
	mux.HandleFunc("GET "+p+"/analysis-results/", b.authed(b.handleListAnalyses))
	mux.HandleFunc("GET "+p+"/analysis-results/by-image/{id}/", b.authed(b.handleAnalysisByImage))
	mux.HandleFunc("GET "+p+"/reviews/", b.authed(b.handleListReviews))
	mux.HandleFunc("POST "+p+"/reviews/", b.authed(b.handleCreateReview))
	mux.HandleFunc("GET "+p+"/reviews/{id}/", b.authed(b.handleGetReview))
	mux.HandleFunc("PATCH "+p+"/reviews/{id}/", b.authed(b.handleUpdateReview))
	mux.HandleFunc("DELETE "+p+"/reviews/{id}/", b.authed(b.handleDeleteReview))
	mux.HandleFunc("GET /media/oct_images/{name}", b.authed(b.handleMedia))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.recordAndMaybeFail(w, r) {
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) recordAndMaybeFail(w http.ResponseWriter, r *http.Request) bool {
	b.mu.Lock()
	b.requests = append(b.requests, RecordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		RequestID:     r.Header.Get("X-Request-ID"),
		ContentType:   r.Header.Get("Content-Type"),
		UserAgent:     r.Header.Get("User-Agent"),
	})
	var hit *failure
	for i, f := range b.failures {
		if f.method == r.Method && BackendPrefix+f.path == r.URL.Path {
			hit = &f
			b.failures = slices.Delete(b.failures, i, i+1)
			break
		}
	}
	b.mu.Unlock()

	if r.URL.Path == BackendPrefix+"/token/refresh/" {
		b.refreshCalls.Add(1)
	}
	if hit == nil {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(hit.status)
	_, _ = io.WriteString(w, hit.body)
	return true
}

// --- tokens ---

func (b *FakeBackend) issueLocked(userID int) domainauth.Tokens {
	now := b.now()
	return domainauth.Tokens{
		Access:  b.sign(userID, "access", b.accessGen, now.Add(time.Hour)),
		Refresh: b.sign(userID, "refresh", b.refreshGen, now.Add(14*24*time.Hour)),
	}
}

func (b *FakeBackend) sign(userID int, typ string, gen int, exp time.Time) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"token_type": typ,
		"user_id":    userID,
		"jti":        uuid.NewString(),
		"gen":        gen,
		"iat":        b.now().Unix(),
		"exp":        exp.Unix(),
	}).SignedString([]byte(fakeBackendKey))
	if err != nil {
		panic(err)
	}
	return tok
}

// verifyLocked checks signature, type and generation and returns the claims.
func (b *FakeBackend) verifyLocked(raw, typ string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(fakeBackendKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims["token_type"] != typ {
		return nil, false
	}
	gen, _ := claims["gen"].(float64)
	want := b.accessGen
	if typ == "refresh" {
		want = b.refreshGen
		if jti, _ := claims["jti"].(string); b.blacklist[jti] {
			return nil, false
		}
	}
	if int(gen) != want {
		return nil, false
	}
	return claims, true
}

func (b *FakeBackend) userByIDLocked(id int) *FakeUser {
	for _, u := range b.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

type authedHandler func(w http.ResponseWriter, r *http.Request, u *FakeUser)

// authed resolves the bearer token to a user; the handler runs with b.mu held.
func (b *FakeBackend) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"detail": "Authentication credentials were not provided.",
			})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		claims, valid := b.verifyLocked(raw, "access")
		var u *FakeUser
		if valid {
			id, _ := claims["user_id"].(float64)
			u = b.userByIDLocked(int(id))
		}
		if u == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		h(w, r, u)
	}
}

// --- auth endpoints ---

func (b *FakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "JSON parse error"})
		return
	}
	fields := map[string][]string{}
	if in.Username == "" {
		fields["username"] = []string{"This field may not be blank."}
	}
	if in.Password == "" {
		fields["password"] = []string{"This field may not be blank."}
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[in.Username]
	if !ok || u.Password != in.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"detail": "No active account found with the given credentials",
		})
		return
	}
	b.writeAuthResult(w, http.StatusOK, u)
}

func (b *FakeBackend) writeAuthResult(w http.ResponseWriter, status int, u *FakeUser) {
	tokens := b.issueLocked(u.ID)
	writeJSON(w, status, map[string]any{
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
		"user":    loginShape(u),
	})
}

func (b *FakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if d := time.Duration(b.refreshDelay.Load()); d > 0 {
		time.Sleep(d)
	}
	var in struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"refresh": []string{"This field is required."}})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	claims, ok := b.verifyLocked(in.Refresh, "refresh")
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	// rotate and blacklist the presented token
	jti, _ := claims["jti"].(string)
	b.blacklist[jti] = true
	id, _ := claims["user_id"].(float64)
	tokens := b.issueLocked(int(id))
	writeJSON(w, http.StatusOK, map[string]any{"access": tokens.Access, "refresh": tokens.Refresh})
}

func (b *FakeBackend) handleSignup(w http.ResponseWriter, r *http.Request) {
	form, pic, err := readFields(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}
	fields := map[string][]string{}
	for _, k := range []string{"username", "password", "email"} {
		if form[k] == "" {
			fields[k] = []string{"This field is required."}
		}
	}
	if form["email"] != "" {
		if _, err := mail.ParseAddress(form["email"]); err != nil {
			fields["email"] = []string{"Enter a valid email address."}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.users[form["username"]]; taken && form["username"] != "" {
		fields["username"] = []string{"A user with that username already exists."}
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}
	u := b.addUserLocked(FakeUser{
		Username:      form["username"],
		Password:      form["password"],
		Email:         form["email"],
		FirstName:     form["first_name"],
		LastName:      form["last_name"],
		Hospital:      form["hospital"],
		Specialty:     form["specialty"],
		Role:          form["role"],
		LicenseNumber: form["license_number"],
		PhoneNumber:   form["phone_number"],
	})
	if pic != "" {
		u.ProfilePicture = "/media/profile_pics/" + pic
	}
	b.writeAuthResult(w, http.StatusCreated, u)
}

func (b *FakeBackend) handleMe(w http.ResponseWriter, _ *http.Request, u *FakeUser) {
	writeJSON(w, http.StatusOK, meShape(u))
}

func (b *FakeBackend) handleUpdateProfile(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	form, pic, err := readFields(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}
	if email, ok := form["email"]; ok {
		if _, err := mail.ParseAddress(email); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"email": []string{"Enter a valid email address."}})
			return
		}
		u.Email = email
	}
	set := func(key string, dst *string) {
		if v, ok := form[key]; ok {
			*dst = v
		}
	}
	set("first_name", &u.FirstName)
	set("last_name", &u.LastName)
	set("hospital", &u.Hospital)
	set("specialty", &u.Specialty)
	set("license_number", &u.LicenseNumber)
	set("phone_number", &u.PhoneNumber)
	if pic != "" {
		u.ProfilePicture = "/media/profile_pics/" + pic
	}
	writeJSON(w, http.StatusOK, meShape(u))
}

// --- images and analyses ---

func (b *FakeBackend) handleUploadImage(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Multipart form parse error"})
		return
	}
	file, header, err := r.FormFile("image_file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"image_file": []string{"No file was submitted."}})
		return
	}
	content, err := io.ReadAll(file)
	_ = file.Close()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"image_file": []string{"Upload a valid image."}})
		return
	}
	customID := r.FormValue("custom_id")
	if len([]rune(customID)) > 50 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"custom_id": []string{"Ensure this field has no more than 50 characters."}})
		return
	}

	now := b.now().UTC()
	img := &fakeImage{
		ID:         uuid.NewString(),
		DoctorID:   u.ID,
		File:       "/media/oct_images/" + header.Filename,
		Content:    content,
		CustomID:   customID,
		UploadedAt: now,
	}
	an := &fakeAnalysis{
		ID:             uuid.NewString(),
		ImageID:        img.ID,
		Classification: b.Classification,
		Findings:       "Automated findings for " + header.Filename,
		AnalyzedAt:     now,
	}
	img.AnalysisID = an.ID
	b.images[img.ID] = img
	b.analyses[an.ID] = an
	writeJSON(w, http.StatusCreated, b.imageDetailLocked(img))
}

func (b *FakeBackend) handleListImages(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	search := r.URL.Query().Get("search")
	var out []*fakeImage
	for _, img := range b.images {
		if img.DoctorID != u.ID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(img.CustomID), strings.ToLower(search)) {
			continue
		}
		out = append(out, img)
	}
	desc := r.URL.Query().Get("ordering") != "upload_date"
	slices.SortFunc(out, func(a, c *fakeImage) int {
		cmp := a.UploadedAt.Compare(c.UploadedAt)
		if cmp == 0 {
			cmp = strings.Compare(a.ID, c.ID)
		}
		if desc {
			return -cmp
		}
		return cmp
	})
	list := make([]map[string]any, 0, len(out))
	for _, img := range out {
		list = append(list, map[string]any{
			"id":          img.ID,
			"doctor":      img.DoctorID,
			"image_file":  img.File,
			"upload_date": img.UploadedAt,
			"custom_id":   nullable(img.CustomID),
		})
	}
	writeJSON(w, http.StatusOK, list)
}

func (b *FakeBackend) handleGetImage(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	img, ok := b.images[r.PathValue("id")]
	if !ok || img.DoctorID != u.ID {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, b.imageDetailLocked(img))
}

// handleMedia serves an uploaded scan to its owner.
func (b *FakeBackend) handleMedia(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	for _, img := range b.images {
		if img.File == r.URL.Path && img.DoctorID == u.ID {
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(img.Content)
			return
		}
	}
	http.NotFound(w, r)
}

func (b *FakeBackend) imageDetailLocked(img *fakeImage) map[string]any {
	out := map[string]any{
		"id":          img.ID,
		"image_file":  img.File,
		"upload_date": img.UploadedAt,
		"custom_id":   nullable(img.CustomID),
	}
	if owner := b.userByIDLocked(img.DoctorID); owner != nil {
		out["doctor"] = meShape(owner)
	}
	if an, ok := b.analyses[img.AnalysisID]; ok {
		out["analysis_result"] = analysisShape(an, img.ID)
	}
	return out
}

func analysisShape(an *fakeAnalysis, image any) map[string]any {
	return map[string]any{
		"id":             an.ID,
		"oct_image":      image,
		"classification": an.Classification,
		"findings":       an.Findings,
		"analysis_image": nil,
		"analysis_date":  an.AnalyzedAt,
	}
}

func (b *FakeBackend) ownsImageLocked(imageID string, u *FakeUser) bool {
	img, ok := b.images[imageID]
	return ok && img.DoctorID == u.ID
}

func (b *FakeBackend) handleListAnalyses(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	filter := r.URL.Query().Get("oct_image")
	list := []map[string]any{}
	for _, an := range b.analyses {
		if !b.ownsImageLocked(an.ImageID, u) || (filter != "" && an.ImageID != filter) {
			continue
		}
		list = append(list, analysisShape(an, an.ImageID))
	}
	slices.SortFunc(list, func(a, c map[string]any) int {
		return strings.Compare(a["id"].(string), c["id"].(string))
	})
	writeJSON(w, http.StatusOK, list)
}

func (b *FakeBackend) handleAnalysisByImage(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	imageID := r.PathValue("id")
	img, ok := b.images[imageID]
	if !ok || img.DoctorID != u.ID {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Analysis result not found"})
		return
	}
	an, ok := b.analyses[img.AnalysisID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Analysis result not found"})
		return
	}
	embedded := b.imageDetailLocked(img)
	delete(embedded, "analysis_result")
	writeJSON(w, http.StatusOK, analysisShape(an, embedded))
}

// SetAnalysis overrides the classification stored for an image's analysis.
func (b *FakeBackend) SetAnalysis(imageID, classification, findings string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	img, ok := b.images[imageID]
	if !ok {
		return
	}
	if an, ok := b.analyses[img.AnalysisID]; ok {
		an.Classification = classification
		an.Findings = findings
	}
}

// --- reviews ---

func (b *FakeBackend) reviewShapeLocked(rv *fakeReview, viewer *FakeUser) map[string]any {
	doctor := map[string]any{"first_name": "", "last_name": ""}
	if author := b.userByIDLocked(rv.DoctorID); author != nil {
		doctor = map[string]any{"first_name": author.FirstName, "last_name": author.LastName}
	}
	return map[string]any{
		"id":              rv.ID,
		"analysis_result": rv.AnalysisID,
		"doctor":          doctor,
		"rating":          rv.Rating,
		"comments":        rv.Comments,
		"review_date":     rv.ReviewedAt,
		"is_owner":        rv.DoctorID == viewer.ID,
	}
}

func (b *FakeBackend) handleListReviews(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	filter := r.URL.Query().Get("analysis_result")
	var out []*fakeReview
	for _, rv := range b.reviews {
		if filter != "" && rv.AnalysisID != filter {
			continue
		}
		out = append(out, rv)
	}
	ordering := r.URL.Query().Get("ordering")
	if ordering == "" {
		ordering = "-review_date"
	}
	desc := strings.HasPrefix(ordering, "-")
	byRating := strings.TrimPrefix(ordering, "-") == "rating"
	slices.SortFunc(out, func(a, c *fakeReview) int {
		var cmp int
		if byRating {
			cmp = a.Rating - c.Rating
		} else {
			cmp = a.ReviewedAt.Compare(c.ReviewedAt)
		}
		if cmp == 0 {
			cmp = strings.Compare(a.ID, c.ID)
		}
		if desc {
			return -cmp
		}
		return cmp
	})
	list := make([]map[string]any, 0, len(out))
	for _, rv := range out {
		list = append(list, b.reviewShapeLocked(rv, u))
	}
	writeJSON(w, http.StatusOK, list)
}

type reviewInput struct {
	AnalysisResult string  `json:"analysis_result"`
	Rating         *int    `json:"rating"`
	Comments       *string `json:"comments"`
}

func validateReview(in reviewInput, partial bool) map[string][]string {
	fields := map[string][]string{}
	if in.Rating == nil && !partial {
		fields["rating"] = []string{"This field is required."}
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		fields["rating"] = []string{"Ensure this value is between 1 and 5."}
	}
	if in.Comments == nil && !partial {
		fields["comments"] = []string{"This field is required."}
	}
	if in.Comments != nil && strings.TrimSpace(*in.Comments) == "" {
		fields["comments"] = []string{"This field may not be blank."}
	}
	return fields
}

func (b *FakeBackend) handleCreateReview(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	var in reviewInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "JSON parse error"})
		return
	}
	fields := validateReview(in, false)
	if _, ok := b.analyses[in.AnalysisResult]; !ok {
		fields["analysis_result"] = []string{"Invalid pk - object does not exist."}
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}
	rv := &fakeReview{
		ID:         uuid.NewString(),
		AnalysisID: in.AnalysisResult,
		DoctorID:   u.ID,
		Rating:     *in.Rating,
		Comments:   *in.Comments,
		ReviewedAt: b.now().UTC(),
	}
	b.reviews[rv.ID] = rv
	writeJSON(w, http.StatusCreated, b.reviewShapeLocked(rv, u))
}

func (b *FakeBackend) handleGetReview(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	rv, ok := b.reviews[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, b.reviewShapeLocked(rv, u))
}

func (b *FakeBackend) ownReviewLocked(w http.ResponseWriter, r *http.Request, u *FakeUser) (*fakeReview, bool) {
	rv, ok := b.reviews[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return nil, false
	}
	if rv.DoctorID != u.ID {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"detail": "You do not have permission to perform this action.",
		})
		return nil, false
	}
	return rv, true
}

func (b *FakeBackend) handleUpdateReview(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	rv, ok := b.ownReviewLocked(w, r, u)
	if !ok {
		return
	}
	var in reviewInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "JSON parse error"})
		return
	}
	if fields := validateReview(in, true); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}
	if in.Rating != nil {
		rv.Rating = *in.Rating
	}
	if in.Comments != nil {
		rv.Comments = *in.Comments
	}
	writeJSON(w, http.StatusOK, b.reviewShapeLocked(rv, u))
}

func (b *FakeBackend) handleDeleteReview(w http.ResponseWriter, r *http.Request, u *FakeUser) {
	rv, ok := b.ownReviewLocked(w, r, u)
	if !ok {
		return
	}
	delete(b.reviews, rv.ID)
	w.WriteHeader(http.StatusNoContent)
}

// --- shapes and helpers ---

func doctorFields(u *FakeUser) map[string]any {
	return map[string]any{
		"hospital":        u.Hospital,
		"specialty":       u.Specialty,
		"role":            u.Role,
		"license_number":  u.LicenseNumber,
		"profile_picture": nullable(u.ProfilePicture),
		"phone_number":    phoneNumber(u.PhoneNumber),
	}
}

// loginShape is the user object returned by /token/ and /doctors/signup/.
func loginShape(u *FakeUser) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"doctor":     doctorFields(u),
	}
}

// meShape is the doctor object returned by /doctors/me/ and /doctors/update_profile/.
func meShape(u *FakeUser) map[string]any {
	out := doctorFields(u)
	out["user"] = map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
	}
	return out
}

// phoneNumber mirrors the backend's integer column.
func phoneNumber(s string) any {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// readFields decodes a JSON object or a multipart form into string fields.
// The second result is the uploaded profile_picture filename, if any.
func readFields(r *http.Request) (map[string]string, string, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			return nil, "", fmt.Errorf("multipart form parse error: %w", err)
		}
		out := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
		var pic string
		if files := r.MultipartForm.File["profile_picture"]; len(files) > 0 {
			pic = files[0].Filename
		}
		return out, pic, nil
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, "", fmt.Errorf("JSON parse error: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out, "", nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
