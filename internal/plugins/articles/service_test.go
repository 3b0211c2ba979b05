package articles

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tribuna-digital/portal/internal/apperror"
	"github.com/tribuna-digital/portal/internal/plugins/audit"
	"github.com/tribuna-digital/portal/internal/sanitize"
)

// --- Mocks ---

// mockRepo implements Repository for testing.
type mockRepo struct {
	createFn     func(ctx context.Context, a *Article) error
	findByIDFn   func(ctx context.Context, id string) (*Article, error)
	findBySlugFn func(ctx context.Context, slug string) (*Article, error)
	listFn       func(ctx context.Context, status string, limit, offset int) ([]Article, int, error)
	updateFn     func(ctx context.Context, a *Article) error
	deleteFn     func(ctx context.Context, id string) error
	slugExistsFn func(ctx context.Context, slug string) (bool, error)
}

func (m *mockRepo) Create(ctx context.Context, a *Article) error {
	if m.createFn != nil {
		return m.createFn(ctx, a)
	}
	return nil
}

func (m *mockRepo) FindByID(ctx context.Context, id string) (*Article, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("article not found")
}

func (m *mockRepo) FindBySlug(ctx context.Context, slug string) (*Article, error) {
	if m.findBySlugFn != nil {
		return m.findBySlugFn(ctx, slug)
	}
	return nil, apperror.NewNotFound("article not found")
}

func (m *mockRepo) List(ctx context.Context, status string, limit, offset int) ([]Article, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, status, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockRepo) Update(ctx context.Context, a *Article) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, a)
	}
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	if m.slugExistsFn != nil {
		return m.slugExistsFn(ctx, slug)
	}
	return false, nil
}

// mockAudit implements audit.Service, recording actions.
type mockAudit struct {
	actions []string
}

func (m *mockAudit) Log(_ context.Context, entry *audit.Entry) error {
	m.actions = append(m.actions, entry.Action)
	return nil
}

func (m *mockAudit) GetActivity(context.Context, int) ([]audit.Entry, int, error) {
	return nil, 0, nil
}

func (m *mockAudit) GetEmailHistory(context.Context, string) ([]audit.Entry, error) {
	return nil, nil
}

func newTestService() (Service, *mockRepo, *mockAudit) {
	repo := &mockRepo{}
	auditSvc := &mockAudit{}
	return NewService(repo, auditSvc), repo, auditSvc
}

// --- Create ---

func TestCreateSanitizesBody(t *testing.T) {
	svc, repo, auditSvc := newTestService()

	var saved *Article
	repo.createFn = func(_ context.Context, a *Article) error {
		saved = a
		return nil
	}

	article, err := svc.Create(context.Background(), "user-1", CreateArticleInput{
		Title: "Eleições 2026",
		Body:  `<p onclick="alert(1)">Apuração<script>steal()</script></p>`,
	})
	require.NoError(t, err)
	require.NotNil(t, saved)

	assert.NotContains(t, article.Body, "script")
	assert.NotContains(t, article.Body, "onclick")
	assert.Contains(t, article.Body, "Apuração")
	assert.Equal(t, StatusDraft, article.Status)
	assert.Equal(t, "elei-es-2026", article.Slug)
	assert.Contains(t, auditSvc.actions, audit.ActionArticleCreated)
}

func TestCreatePreservesEmbedMarkers(t *testing.T) {
	svc, _, _ := newTestService()

	marker := sanitize.MarkerHTML(sanitize.Descriptor{Provider: sanitize.ProviderYouTube, ID: "dQw4w9WgXcQ"})
	article, err := svc.Create(context.Background(), "user-1", CreateArticleInput{
		Title: "Com vídeo",
		Body:  "<p>Antes</p>" + marker + "<p>Depois</p>",
	})
	require.NoError(t, err)

	assert.Contains(t, article.Body, marker, "sanitization must not destroy embed markers")
}

func TestCreateRequiresTitle(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), "user-1", CreateArticleInput{Title: "   "})
	require.Error(t, err)
	assert.Equal(t, 400, apperror.SafeCode(err))

	_, err = svc.Create(context.Background(), "user-1", CreateArticleInput{
		Title: strings.Repeat("x", maxTitleLength+1),
	})
	require.Error(t, err)
}

func TestCreateDeduplicatesSlug(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.slugExistsFn = func(_ context.Context, slug string) (bool, error) {
		return slug == "mesmo-titulo", nil
	}

	article, err := svc.Create(context.Background(), "user-1", CreateArticleInput{Title: "Mesmo Titulo"})
	require.NoError(t, err)
	assert.Equal(t, "mesmo-titulo-2", article.Slug)
}

// --- Update ---

func TestUpdateResanitizesBody(t *testing.T) {
	svc, repo, auditSvc := newTestService()
	existing := &Article{ID: "a1", Title: "Original", Slug: "original", Status: StatusDraft}
	repo.findByIDFn = func(_ context.Context, id string) (*Article, error) {
		return existing, nil
	}

	article, err := svc.Update(context.Background(), "a1", "user-2", UpdateArticleInput{
		Title: "Original",
		Body:  `<p>ok</p><iframe src="https://evil.example/"></iframe>`,
	})
	require.NoError(t, err)

	assert.NotContains(t, article.Body, "iframe")
	assert.Equal(t, "original", article.Slug, "slug stays stable when title unchanged")
	assert.Contains(t, auditSvc.actions, audit.ActionArticleUpdated)
}

func TestUpdateIdempotentSanitization(t *testing.T) {
	svc, repo, _ := newTestService()
	existing := &Article{ID: "a1", Title: "T", Slug: "t", Status: StatusDraft}
	repo.findByIDFn = func(_ context.Context, id string) (*Article, error) {
		return existing, nil
	}

	input := UpdateArticleInput{Title: "T", Body: "<p>• Item um</p><p>Texto <b>forte</b></p>"}
	first, err := svc.Update(context.Background(), "a1", "u", input)
	require.NoError(t, err)

	second, err := svc.Update(context.Background(), "a1", "u", UpdateArticleInput{Title: "T", Body: first.Body})
	require.NoError(t, err)

	assert.Equal(t, first.Body, second.Body, "re-saving sanitized content must not change it")
}

// --- Publication ---

func TestPublishSetsTimestamp(t *testing.T) {
	svc, repo, _ := newTestService()
	existing := &Article{ID: "a1", Title: "T", Slug: "t", Status: StatusDraft}
	repo.findByIDFn = func(_ context.Context, id string) (*Article, error) {
		return existing, nil
	}

	article, err := svc.Publish(context.Background(), "a1", "editor-1")
	require.NoError(t, err)

	assert.Equal(t, StatusPublished, article.Status)
	require.NotNil(t, article.PublishedAt)
}

func TestPublishAlreadyPublishedIsNoop(t *testing.T) {
	svc, repo, auditSvc := newTestService()
	existing := &Article{ID: "a1", Status: StatusPublished}
	repo.findByIDFn = func(_ context.Context, id string) (*Article, error) {
		return existing, nil
	}

	_, err := svc.Publish(context.Background(), "a1", "editor-1")
	require.NoError(t, err)
	assert.Empty(t, auditSvc.actions, "re-publishing writes nothing")
}

// --- Render ---

func TestRenderSplitsSegments(t *testing.T) {
	svc, repo, _ := newTestService()

	marker := sanitize.MarkerHTML(sanitize.Descriptor{Provider: sanitize.ProviderTwitter, ID: "12345"})
	repo.findBySlugFn = func(_ context.Context, slug string) (*Article, error) {
		return &Article{
			ID:     "a1",
			Slug:   slug,
			Status: StatusPublished,
			Body:   "<p>Antes</p>" + marker + "<p>Depois</p>",
		}, nil
	}

	rendered, err := svc.Render(context.Background(), "materia")
	require.NoError(t, err)
	require.Len(t, rendered.Segments, 3)

	assert.Contains(t, rendered.Segments[0].HTML, "Antes")
	require.NotNil(t, rendered.Segments[1].Embed)
	assert.Equal(t, sanitize.ProviderTwitter, rendered.Segments[1].Embed.Provider)
	assert.Equal(t, "12345", rendered.Segments[1].Embed.ID)
	assert.Contains(t, rendered.Segments[2].HTML, "Depois")
}

func TestRenderRefusesDraft(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.findBySlugFn = func(_ context.Context, slug string) (*Article, error) {
		return &Article{ID: "a1", Slug: slug, Status: StatusDraft}, nil
	}

	_, err := svc.Render(context.Background(), "rascunho")
	require.Error(t, err)
	assert.Equal(t, 404, apperror.SafeCode(err))
}

// --- Embeds ---

func TestAttachEmbedFromURL(t *testing.T) {
	svc, repo, _ := newTestService()
	existing := &Article{ID: "a1", Body: "<p>Texto</p>", Status: StatusDraft}
	repo.findByIDFn = func(_ context.Context, id string) (*Article, error) {
		return existing, nil
	}

	article, err := svc.AttachEmbed(context.Background(), "a1", "user-1", AttachEmbedInput{
		URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})
	require.NoError(t, err)

	markers := sanitize.ParseMarkers(article.Body)
	require.Len(t, markers, 1)
	assert.Equal(t, sanitize.ProviderYouTube, markers[0].Descriptor.Provider)
	assert.Equal(t, "dQw4w9WgXcQ", markers[0].Descriptor.ID)
}

func TestAttachEmbedRejectsUnknownURL(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.AttachEmbed(context.Background(), "a1", "user-1", AttachEmbedInput{
		URL: "https://example.com/not-a-video",
	})
	require.Error(t, err)
	assert.Equal(t, 400, apperror.SafeCode(err))
}

func TestPreviewEmbed(t *testing.T) {
	svc, _, _ := newTestService()

	trusted := `<iframe src="https://www.youtube.com/embed/abc" width="560" height="315"></iframe>`
	assert.NotEmpty(t, svc.PreviewEmbed(trusted))

	untrusted := `<iframe src="https://evil.example/embed"></iframe>`
	assert.Empty(t, svc.PreviewEmbed(untrusted))
}
