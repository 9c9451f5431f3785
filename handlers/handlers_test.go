package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"snapgram/config"
	"snapgram/database"
	"snapgram/handlers"
	"snapgram/middleware"
	"snapgram/models"
	"snapgram/routes"
)

// memStore is an in-memory stand-in for the Mongo repositories, implementing
// the same sentinel-error contracts.
type memStore struct {
	mu            sync.Mutex
	users         map[primitive.ObjectID]*models.User
	posts         map[primitive.ObjectID]*models.Post
	comments      map[primitive.ObjectID]*models.Comment
	notifications []models.Notification
	subs          map[primitive.ObjectID]*models.PushSubscription
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[primitive.ObjectID]*models.User),
		posts:    make(map[primitive.ObjectID]*models.Post),
		comments: make(map[primitive.ObjectID]*models.Comment),
		subs:     make(map[primitive.ObjectID]*models.PushSubscription),
	}
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	m.users[user.ID] = user
	return nil
}

func (m *memStore) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, database.ErrNotFound
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userByEmailLocked(email)
}

func (m *memStore) userByEmailLocked(email string) (*models.User, error) {
	email = strings.ToLower(email)
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memStore) ConfirmUser(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.userByEmailLocked(email)
	if err != nil || user.Confirmed {
		return database.ErrNotFound
	}
	user.Confirmed = true
	return nil
}

func (m *memStore) SetResetCode(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.userByEmailLocked(email)
	if err != nil {
		return database.ErrNotFound
	}
	user.Code = code
	return nil
}

func (m *memStore) ResetPassword(_ context.Context, email, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, err := m.userByEmailLocked(email)
	if err != nil {
		return database.ErrNotFound
	}
	user.Password = passwordHash
	user.Code = ""
	user.PasswordChangedAt = time.Now()
	return nil
}

func (m *memStore) MarkLoggedIn(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		user.LoggedIn = true
	}
	return nil
}

func (m *memStore) ListUsers(_ context.Context) ([]models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]models.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, *user)
	}
	return users, int64(len(users)), nil
}

func (m *memStore) UpdateProfile(_ context.Context, id primitive.ObjectID, upd models.UserUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.Bio != nil {
		user.Bio = *upd.Bio
	}
	if upd.ProfileImage != nil {
		user.ProfileImage = *upd.ProfileImage
	}
	user.UpdatedAt = time.Now()
	return user, nil
}

func (m *memStore) DeleteUser(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) Follow(_ context.Context, userID, targetID primitive.ObjectID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return 0, database.ErrNotFound
	}
	if containsID(user.Following, targetID) {
		return 0, database.ErrAlreadyFollowing
	}
	target, ok := m.users[targetID]
	if !ok {
		return 0, database.ErrNotFound
	}
	user.Following = append(user.Following, targetID)
	target.Followers = append(target.Followers, userID)
	return len(target.Followers), nil
}

func (m *memStore) Unfollow(_ context.Context, userID, targetID primitive.ObjectID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return 0, database.ErrNotFound
	}
	if !containsID(user.Following, targetID) {
		return 0, database.ErrNotFollowing
	}
	target, ok := m.users[targetID]
	if !ok {
		return 0, database.ErrNotFound
	}
	user.Following = removeID(user.Following, targetID)
	target.Followers = removeID(target.Followers, userID)
	return len(target.Followers), nil
}

func (m *memStore) SavePost(_ context.Context, userID, postID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return database.ErrNotFound
	}
	if containsID(user.SavedPosts, postID) {
		return database.ErrAlreadySaved
	}
	user.SavedPosts = append(user.SavedPosts, postID)
	return nil
}

func (m *memStore) UnsavePost(_ context.Context, userID, postID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return database.ErrNotFound
	}
	if !containsID(user.SavedPosts, postID) {
		return database.ErrNotSaved
	}
	user.SavedPosts = removeID(user.SavedPosts, postID)
	return nil
}

func (m *memStore) SavedPosts(_ context.Context, userID primitive.ObjectID) ([]models.SavedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	saved := []models.SavedPost{}
	for _, id := range user.SavedPosts {
		if post, ok := m.posts[id]; ok {
			saved = append(saved, models.SavedPost{
				ID:          post.ID,
				Description: post.Description,
				Image:       post.Image,
				Likes:       post.Likes,
			})
		}
	}
	return saved, nil
}

func (m *memStore) CreatePost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	m.posts[post.ID] = post
	return nil
}

func (m *memStore) PostByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post, ok := m.posts[id]; ok {
		return post, nil
	}
	return nil, database.ErrNotFound
}

func (m *memStore) PostWithAuthor(_ context.Context, id primitive.ObjectID) (*models.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	view := models.PostView{Post: *post}
	if author, ok := m.users[post.UserID]; ok {
		view.Author = summaryOf(author)
	}
	return &view, nil
}

func (m *memStore) RecentPosts(_ context.Context, q *database.ListQuery) ([]models.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posts := make([]*models.Post, 0, len(m.posts))
	for _, post := range m.posts {
		if q.Search != "" && !strings.Contains(strings.ToLower(post.Description), strings.ToLower(q.Search)) {
			continue
		}
		posts = append(posts, post)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })

	start := q.Skip()
	if start > int64(len(posts)) {
		start = int64(len(posts))
	}
	end := start + q.Limit
	if end > int64(len(posts)) {
		end = int64(len(posts))
	}

	views := []models.PostView{}
	for _, post := range posts[start:end] {
		view := models.PostView{Post: *post}
		if author, ok := m.users[post.UserID]; ok {
			view.Author = summaryOf(author)
		}
		views = append(views, view)
	}
	return views, nil
}

func (m *memStore) UpdatePost(_ context.Context, id primitive.ObjectID, upd models.PostUpdate) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if upd.Description != nil {
		post.Description = *upd.Description
	}
	if upd.Location != nil {
		post.Location = *upd.Location
	}
	if upd.Tags != nil {
		post.Tags = upd.Tags
	}
	if upd.Image != nil {
		post.Image = *upd.Image
	}
	post.UpdatedAt = time.Now()
	return post, nil
}

func (m *memStore) DeletePost(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.posts, id)
	for cid, comment := range m.comments {
		if comment.PostID == id {
			delete(m.comments, cid)
		}
	}
	return nil
}

func (m *memStore) ToggleLike(_ context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[postID]
	if !ok {
		return nil, false, database.ErrNotFound
	}
	if containsID(post.Likes, userID) {
		post.Likes = removeID(post.Likes, userID)
		return post, false, nil
	}
	post.Likes = append(post.Likes, userID)
	return post, true, nil
}

func (m *memStore) PostsByUser(_ context.Context, userID primitive.ObjectID) ([]models.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := []models.PostView{}
	for _, post := range m.posts {
		if post.UserID == userID {
			views = append(views, models.PostView{Post: *post})
		}
	}
	return views, nil
}

func (m *memStore) LikedPosts(_ context.Context, userID primitive.ObjectID) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posts := []models.Post{}
	for _, post := range m.posts {
		if containsID(post.Likes, userID) {
			posts = append(posts, *post)
		}
	}
	return posts, nil
}

func (m *memStore) CreateComment(_ context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[comment.PostID]
	if !ok {
		return database.ErrNotFound
	}
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	m.comments[comment.ID] = comment
	post.Comments = append(post.Comments, comment.ID)
	return nil
}

func (m *memStore) CommentByID(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if comment, ok := m.comments[id]; ok {
		return comment, nil
	}
	return nil, database.ErrNotFound
}

func (m *memStore) UpdateCommentText(_ context.Context, id primitive.ObjectID, text string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment, ok := m.comments[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	comment.Comment = text
	comment.UpdatedAt = time.Now()
	return comment, nil
}

func (m *memStore) DeleteComment(_ context.Context, postID, commentID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[commentID]; !ok {
		return database.ErrNotFound
	}
	delete(m.comments, commentID)
	if post, ok := m.posts[postID]; ok {
		post.Comments = removeID(post.Comments, commentID)
	}
	return nil
}

func (m *memStore) CommentsForPost(_ context.Context, postID primitive.ObjectID) ([]models.CommentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[postID]; !ok {
		return nil, database.ErrNotFound
	}
	views := []models.CommentView{}
	for _, comment := range m.comments {
		if comment.PostID == postID {
			view := models.CommentView{Comment: *comment}
			if author, ok := m.users[comment.UserID]; ok {
				view.Author = summaryOf(author)
			}
			views = append(views, view)
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.Before(views[j].CreatedAt) })
	return views, nil
}

func (m *memStore) AddReply(_ context.Context, postID, commentID primitive.ObjectID, reply models.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment, ok := m.comments[commentID]
	if !ok || comment.PostID != postID {
		return database.ErrNotFound
	}
	comment.Replies = append(comment.Replies, reply)
	return nil
}

func (m *memStore) ToggleCommentLike(_ context.Context, postID, commentID, userID primitive.ObjectID) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment, ok := m.comments[commentID]
	if !ok || comment.PostID != postID {
		return false, 0, database.ErrNotFound
	}
	if containsID(comment.Likes, userID) {
		comment.Likes = removeID(comment.Likes, userID)
		return false, len(comment.Likes), nil
	}
	comment.Likes = append(comment.Likes, userID)
	return true, len(comment.Likes), nil
}

func (m *memStore) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *memStore) NotificationsFor(_ context.Context, userID primitive.ObjectID) ([]models.NotificationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := []models.NotificationView{}
	for _, n := range m.notifications {
		if n.Receiver == userID {
			views = append(views, models.NotificationView{Notification: n})
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.After(views[j].CreatedAt) })
	return views, nil
}

func (m *memStore) MarkRead(_ context.Context, id, receiver primitive.ObjectID) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notifications {
		if m.notifications[i].ID == id && m.notifications[i].Receiver == receiver {
			m.notifications[i].IsRead = true
			n := m.notifications[i]
			return &n, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memStore) LikeNotificationExists(_ context.Context, receiver, sender, postID primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.Type == models.NotificationLike && n.Receiver == receiver && n.Sender == sender &&
			n.Post != nil && *n.Post == postID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) SaveSubscription(_ context.Context, sub *models.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.UserID] = sub
	return nil
}

func (m *memStore) notificationsOfType(typ string) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Notification{}
	for _, n := range m.notifications {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func summaryOf(user *models.User) *models.UserSummary {
	return &models.UserSummary{
		ID:           user.ID,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		ProfileImage: user.ProfileImage,
	}
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// fakeUploader hands out sequential locator pairs and records destroys.
type fakeUploader struct {
	mu        sync.Mutex
	uploads   int
	destroyed []string
	fail      bool
}

func (f *fakeUploader) Upload(_ context.Context, _ io.Reader, folder string) (models.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return models.Image{}, fmt.Errorf("upload rejected")
	}
	f.uploads++
	return models.Image{
		SecureURL: fmt.Sprintf("https://media.example/%s/%d.jpg", folder, f.uploads),
		PublicID:  fmt.Sprintf("%s/%d", folder, f.uploads),
	}, nil
}

func (f *fakeUploader) Destroy(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (f *fakeMailer) Send(_ context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("smtp down")
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

// fakeQueue records what handlers hand to the background notifier.
type fakeQueue struct {
	mu         sync.Mutex
	dispatched []models.Notification
	pushed     []models.Notification
}

func (f *fakeQueue) Dispatch(ns ...models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, ns...)
}

func (f *fakeQueue) Push(n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, n)
}

type env struct {
	store    *memStore
	uploader *fakeUploader
	mailer   *fakeMailer
	queue    *fakeQueue
	cfg      *config.Config
	router   *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMemStore()
	uploader := &fakeUploader{}
	mail := &fakeMailer{}
	queue := &fakeQueue{}
	cfg := &config.Config{
		JWTSecret:      "session-secret",
		ConfirmSecret:  "confirm-secret",
		RefreshSecret:  "refresh-secret",
		BcryptCost:     bcrypt.MinCost,
		VAPIDPublicKey: "test-vapid-public",
		PublicBaseURL:  "http://localhost:8080",
		AllowOrigins:   []string{"http://localhost:3000"},
	}

	h := &handlers.Handler{
		Users:         store,
		Posts:         store,
		Comments:      store,
		Notifications: store,
		Push:          store,
		Media:         uploader,
		Mail:          mail,
		Queue:         queue,
		Cfg:           cfg,
	}

	return &env{
		store:    store,
		uploader: uploader,
		mailer:   mail,
		queue:    queue,
		cfg:      cfg,
		router:   routes.SetupRouter(h, store, cfg),
	}
}

// seedUser creates a confirmed user directly in the store and returns it with
// a valid session token.
func (e *env) seedUser(t *testing.T, firstName, email string) (*models.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.NewUser(firstName, "Tester", email, string(hash))
	user.Confirmed = true
	require.NoError(t, e.store.CreateUser(context.Background(), user))

	token, err := middleware.SignSession(e.cfg.JWTSecret, user)
	require.NoError(t, err)
	return user, "Bearer " + token
}

func (e *env) seedPost(t *testing.T, owner *models.User, description string) *models.Post {
	t.Helper()
	now := time.Now()
	post := &models.Post{
		ID:          primitive.NewObjectID(),
		UserID:      owner.ID,
		Description: description,
		Image:       models.Image{SecureURL: "https://media.example/p.jpg", PublicID: "snapgram/posts/p"},
		CustomID:    "abcd1234",
		Likes:       []primitive.ObjectID{},
		Comments:    []primitive.ObjectID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, e.store.CreatePost(context.Background(), post))
	return post
}

func (e *env) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	contentType := ""
	if body != nil {
		buf, _ := json.Marshal(body)
		reader = bytes.NewReader(buf)
		contentType = "application/json"
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// doMultipart sends a multipart form, optionally attaching a small file.
func (e *env) doMultipart(method, path, token string, fields map[string]string, fileField string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = writer.WriteField(k, v)
	}
	if fileField != "" {
		part, _ := writer.CreateFormFile(fileField, "photo.jpg")
		_, _ = part.Write([]byte("fake image bytes"))
	}
	_ = writer.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestUnknownAPIEndpoint(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/api/v1/auth/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "Endpoint not found")
}

func TestHealthEndpoint(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
