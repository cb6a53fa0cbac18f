package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokmz/reviewhub/pkg/cache"
	"github.com/tokmz/reviewhub/pkg/orm"
	"github.com/tokmz/reviewhub/utils/pointer"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := orm.DefaultConfig()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	cfg.PrepareStmt = false
	cfg.Tracing = false

	db, err := orm.Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = orm.Close(db) })

	require.NoError(t, NewGormRepository(db).Migrate(context.Background()))
	return db
}

// countingRepo 统计 Get 调用次数
type countingRepo struct {
	Repository
	mu   sync.Mutex
	gets int
}

func (r *countingRepo) Get(ctx context.Context, id uint) (*Review, error) {
	r.mu.Lock()
	r.gets++
	r.mu.Unlock()
	return r.Repository.Get(ctx, id)
}

func (r *countingRepo) getCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets
}

type notification struct {
	room  string
	event string
	id    uint
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(_ context.Context, room, event string, id uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{room, event, id})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

func input(title, contentType string, rating Rating) CreateInput {
	return CreateInput{
		Title:          title,
		ContentType:    contentType,
		CoverImageURL:  "https://img.example/" + title + ".png",
		ReviewMarkdown: "# " + title,
		Rating:         rating,
		TagsList:       "terror, sci-fi",
	}
}

type fixture struct {
	svc      *Service
	repo     *countingRepo
	notifier *recordingNotifier
	cache    cache.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	c, err := cache.New(cache.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	repo := &countingRepo{Repository: NewGormRepository(db)}
	n := &recordingNotifier{}
	svc := NewService(repo, WithCache(c, time.Minute), WithNotifier(n))
	require.NoError(t, svc.Warm(context.Background()))
	return &fixture{svc: svc, repo: repo, notifier: n, cache: c}
}

// ============ Rating ============

func TestRating(t *testing.T) {
	assert.Equal(t, "PEAK_FICTION", RatingPeakFiction.String())
	assert.Equal(t, "Rating(9)", Rating(9).String())
	assert.False(t, Rating(0).Valid())

	r, err := ParseRating("maneiro")
	require.NoError(t, err)
	assert.Equal(t, RatingManeiro, r)

	r, err = ParseRating("2")
	require.NoError(t, err)
	assert.Equal(t, RatingNaoEPraMim, r)

	_, err = ParseRating("6")
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = ParseRating("GREAT")
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestRating_JSON(t *testing.T) {
	var in CreateInput
	require.NoError(t, json.Unmarshal([]byte(`{"rating":"ESQUECIVEL"}`), &in))
	assert.Equal(t, RatingEsquecivel, in.Rating)

	require.NoError(t, json.Unmarshal([]byte(`{"rating":5}`), &in))
	assert.Equal(t, RatingPeakFiction, in.Rating)

	assert.Error(t, json.Unmarshal([]byte(`{"rating":"NOPE"}`), &in))

	out, err := json.Marshal(Review{Rating: RatingManeiro})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"rating":4`)
}

func TestReview_Tags(t *testing.T) {
	r := Review{TagsList: " terror, sci-fi ,, drama "}
	assert.Equal(t, []string{"terror", "sci-fi", "drama"}, r.Tags())
	assert.Nil(t, (&Review{}).Tags())
}

// ============ Service ============

func TestService_CreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, input("Dune", "livro", RatingPeakFiction))
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.True(t, created.Published)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, RatingPeakFiction, got.Rating)

	// 第二次读取命中缓存
	_, err = f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.getCalls())

	assert.Equal(t, []notification{{ListRoom, EventCreated, created.ID}}, f.notifier.all())
}

func TestService_CreateRespectsPublishedFalse(t *testing.T) {
	f := newFixture(t)
	in := input("Draft", "filme", RatingManeiro)
	in.Published = new(bool)

	created, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, got.Published)
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), input("Bad", "jogo", 0))
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = f.svc.Create(context.Background(), input(" ", "jogo", RatingManeiro))
	assert.ErrorIs(t, err, ErrInvalidReview)
	assert.Empty(t, f.notifier.all())
}

func TestService_GetUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrReviewNotFound)
	_, err = f.svc.Get(context.Background(), 0)
	assert.ErrorIs(t, err, ErrReviewNotFound)
	// id 0 不访问存储
	assert.Equal(t, 1, f.repo.getCalls())
	assert.False(t, f.svc.ids.Test(42))
}

func TestService_GetRowWrittenOutsideService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 模拟其他实例或外部写入，本进程过滤器不知道该 id
	in := input("Alien", "filme", RatingManeiro)
	rv := in.toReview(time.Now())
	require.NoError(t, f.repo.Create(ctx, rv))
	require.False(t, f.svc.ids.Test(rv.ID))

	got, err := f.svc.Get(ctx, rv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alien", got.Title)
	assert.True(t, f.svc.ids.Test(rv.ID))

	// 补记后走缓存
	_, err = f.svc.Get(ctx, rv.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, rv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.repo.getCalls())
}

func TestService_WarmRebuildsFilter(t *testing.T) {
	db := openTestDB(t)
	repo := NewGormRepository(db)
	rv := input("Alien", "filme", RatingManeiro)
	require.NoError(t, repo.Create(context.Background(), rv.toReview(time.Now())))

	svc := NewService(repo)
	assert.False(t, svc.ids.Test(1))

	require.NoError(t, svc.Warm(context.Background()))
	assert.True(t, svc.ids.Test(1))
	got, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Alien", got.Title)
}

func TestIDFilter_Rebuild(t *testing.T) {
	f := newIDFilter(0)
	f.Add(1)
	f.Add(2)

	// 重建期间写入的 id 不丢失，已删除的 id 被清除
	n, err := f.Rebuild(func() ([]uint, error) {
		f.Add(3)
		return []uint{1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, f.Test(1))
	assert.False(t, f.Test(2))
	assert.True(t, f.Test(3))

	// 加载失败保留旧过滤器
	_, err = f.Rebuild(func() ([]uint, error) { return nil, assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, f.Test(3))
}

func TestService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, input("Halo", "jogo", RatingEsquecivel))
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, created.ID) // 填充缓存
	require.NoError(t, err)

	later := created.UpdatedAt.Add(time.Hour)
	f.svc.now = func() time.Time { return later }

	rating := RatingManeiro
	updated, err := f.svc.Update(ctx, created.ID, UpdateInput{
		Rating:    &rating,
		TimeSpent: pointer.Of("40h"),
	})
	require.NoError(t, err)
	assert.Equal(t, RatingManeiro, updated.Rating)
	assert.Equal(t, "Halo", updated.Title)
	assert.Equal(t, "40h", *updated.TimeSpent)
	assert.True(t, updated.UpdatedAt.Equal(later))

	// 缓存已失效，读到新值
	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, RatingManeiro, got.Rating)
	assert.Equal(t, "terror, sci-fi", got.TagsList)

	sent := f.notifier.all()
	require.Len(t, sent, 2)
	assert.Equal(t, notification{"/reviews/" + fmt.Sprint(created.ID), EventUpdated, created.ID}, sent[1])
}

func TestService_UpdateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, 99, UpdateInput{Title: pointer.Of("x")})
	assert.ErrorIs(t, err, ErrReviewNotFound)

	bad := Rating(7)
	_, err = f.svc.Update(ctx, 1, UpdateInput{Rating: &bad})
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = f.svc.Update(ctx, 1, UpdateInput{Title: pointer.Of("")})
	assert.ErrorIs(t, err, ErrInvalidReview)
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, input("Lost", "série", RatingAbismo))
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, created.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	_, err = f.svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrReviewNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, created.ID), ErrReviewNotFound)

	sent := f.notifier.all()
	require.Len(t, sent, 2)
	assert.Equal(t, notification{DetailRoom(created.ID), EventDeleted, created.ID}, sent[1])
}

func TestService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, in := range []CreateInput{
		input("A", "filme", RatingManeiro),
		input("B", "jogo", RatingManeiro),
		input("C", "filme", RatingAbismo),
		input("D", "filme", RatingManeiro),
	} {
		created := base.Add(time.Duration(i) * time.Hour)
		in.CreatedAt = &created
		_, err := f.svc.Create(ctx, in)
		require.NoError(t, err)
	}

	titles := func(rs []Review) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.Title
		}
		return out
	}

	all, total, err := f.svc.List(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, []string{"D", "C", "B", "A"}, titles(all))

	films, total, err := f.svc.List(ctx, ListQuery{ContentType: "filme", Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []string{"D", "A"}, titles(films))

	page, total, err := f.svc.List(ctx, ListQuery{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, []string{"C", "B"}, titles(page))

	_, _, err = f.svc.List(ctx, ListQuery{Limit: 101})
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, _, err = f.svc.List(ctx, ListQuery{Offset: -1})
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, _, err = f.svc.List(ctx, ListQuery{Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestService_ConcurrentMissesLoadOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, input("Tetris", "jogo", RatingPeakFiction))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.svc.Get(ctx, created.ID)
			assert.NoError(t, err)
			assert.Equal(t, "Tetris", got.Title)
		}()
	}
	wg.Wait()
	// singleflight 合并并发未命中，之后命中缓存；存储调用远少于请求数
	assert.Less(t, f.repo.getCalls(), 20)
}

// ============ Seed ============

const seedYAML = `
reviews:
  - title: Dune
    content_type: livro
    cover_image_url: https://img.example/dune.png
    review_markdown: "# Dune"
    rating: PEAK_FICTION
    tags_list: sci-fi, deserto
  - title: Alien
    content_type: filme
    cover_image_url: https://img.example/alien.png
    review_markdown: "# Alien"
    rating: 4
    tags_list: terror
    published: false
`

func TestParseSeed(t *testing.T) {
	inputs, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, RatingPeakFiction, inputs[0].Rating)
	assert.Equal(t, RatingManeiro, inputs[1].Rating)
	require.NotNil(t, inputs[1].Published)
	assert.False(t, *inputs[1].Published)

	_, err = ParseSeed([]byte("reviews:\n  - rating: LEGENDARY\n"))
	assert.Error(t, err)
}

func TestService_Seed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inputs, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	n, err := f.svc.Seed(ctx, inputs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, total, err := f.svc.List(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "Dune", list[0].Title)

	// 种子写入的 id 已加入过滤器
	_, err = f.svc.Get(ctx, list[1].ID)
	assert.NoError(t, err)

	// 表非空时不重复写入
	n, err = f.svc.Seed(ctx, inputs)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.notifier.all())
}

func TestLoadSeed_MissingFile(t *testing.T) {
	_, err := LoadSeed("does-not-exist.yaml")
	assert.Error(t, err)
}
