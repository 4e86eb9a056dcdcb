package cart_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handicraft/storefront/pkg/cart"
	"github.com/handicraft/storefront/pkg/catalog"
	"github.com/handicraft/storefront/pkg/identity"
	"github.com/handicraft/storefront/pkg/kvstore"
)

func product(id, price string, stock int) catalog.Product {
	return catalog.Product{
		ID:     id,
		Name:   "Product " + id,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Images: []catalog.Image{{URL: "/uploads/" + id + ".jpg"}},
	}
}

func newStore(t *testing.T, repo cart.Repository) *cart.Store {
	t.Helper()
	s, err := cart.New(repo)
	require.NoError(t, err)
	require.NoError(t, s.SwitchPartition(context.Background(), nil))
	return s
}

// failingRepo fails Save or Load on demand.
type failingRepo struct {
	*cart.MemoryRepository
	failSave, failLoad bool
}

var errDisk = errors.New("disk full")

func (r *failingRepo) Save(ctx context.Context, key cart.PartitionKey, lines []cart.Line) error {
	if r.failSave {
		return errDisk
	}
	return r.MemoryRepository.Save(ctx, key, lines)
}

func (r *failingRepo) Load(ctx context.Context, key cart.PartitionKey) ([]cart.Line, error) {
	if r.failLoad {
		return nil, errDisk
	}
	return r.MemoryRepository.Load(ctx, key)
}

func TestPartitionKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, cart.Guest, cart.PartitionFor(nil))
	assert.Equal(t, cart.Guest, cart.PartitionFor(&identity.Identity{}))

	k := cart.PartitionFor(&identity.Identity{ID: "abc", Role: identity.Customer})
	assert.Equal(t, cart.PartitionKey("user:abc"), k)
	assert.Equal(t, "cart_abc", k.StorageKey())
	assert.Equal(t, "cart_guest", cart.Guest.StorageKey())
	assert.Equal(t, "cart_user_guest", cart.PartitionFor(&identity.Identity{ID: "guest"}).StorageKey())

	id, ok := k.UserID()
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
	_, ok = cart.Guest.UserID()
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := cart.New(nil)
	assert.ErrorIs(t, err, cart.ErrNoRepository)

	s := newStore(t, cart.NewMemoryRepository())
	assert.Equal(t, cart.Guest, s.Partition())
	assert.True(t, s.Loaded())
	assert.Zero(t, s.Len())
	assert.True(t, s.Total().IsZero())
}

func TestMutationsWaitForLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := cart.NewMemoryRepository()
	stored := []cart.Line{{Product: product("a", "5", 3), Quantity: 2}}
	require.NoError(t, repo.Save(ctx, cart.Guest, stored))

	s, err := cart.New(repo)
	require.NoError(t, err)
	assert.False(t, s.Loaded())

	assert.ErrorIs(t, s.AddToCart(ctx, product("b", "1", 1)), cart.ErrNotLoaded)
	assert.ErrorIs(t, s.UpdateQuantity(ctx, "a", 5), cart.ErrNotLoaded)
	assert.ErrorIs(t, s.RemoveFromCart(ctx, "a"), cart.ErrNotLoaded)
	assert.ErrorIs(t, s.RemoveAll(ctx, "a"), cart.ErrNotLoaded)
	assert.ErrorIs(t, s.ClearCart(ctx), cart.ErrNotLoaded)
	assert.ErrorIs(t, s.UpdateQuantity(ctx, "a", 0), cart.ErrNotLoaded)

	untouched, err := repo.Load(ctx, cart.Guest)
	require.NoError(t, err)
	assert.Equal(t, stored, untouched)

	require.NoError(t, s.SwitchPartition(ctx, nil))
	require.NoError(t, s.AddToCart(ctx, product("b", "1", 1)))
	assert.Equal(t, 3, s.Count())
}

func TestAddToCart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("one line per distinct product", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, cart.NewMemoryRepository())
		calls := map[string]int{"a": 3, "b": 1, "c": 2}
		for _, id := range []string{"a", "b", "a", "c", "a", "c"} {
			require.NoError(t, s.AddToCart(ctx, product(id, "1", 10)))
		}

		lines := s.Lines()
		require.Len(t, lines, len(calls))
		for _, l := range lines {
			assert.Equal(t, calls[l.Product.ID], l.Quantity, l.Product.ID)
		}
		assert.Equal(t, []string{"a", "b", "c"}, []string{lines[0].Product.ID, lines[1].Product.ID, lines[2].Product.ID})
		assert.Equal(t, 6, s.Count())
		assert.Equal(t, 3, s.Len())
	})

	t.Run("existing line keeps its snapshot", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, cart.NewMemoryRepository())
		p := product("a", "10.00", 5)
		require.NoError(t, s.AddToCart(ctx, p))

		p.Price = decimal.RequireFromString("99")
		p.Name = "Renamed"
		require.NoError(t, s.AddToCart(ctx, p))

		l, ok := s.Line("a")
		require.True(t, ok)
		assert.Equal(t, 2, l.Quantity)
		assert.Equal(t, "Product a", l.Product.Name)
		assert.True(t, l.Product.Price.Equal(decimal.NewFromInt(10)))
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, cart.NewMemoryRepository())
		p := product("a", "1", 1)
		require.NoError(t, s.AddToCart(ctx, p))
		p.Images[0].URL = "mutated"

		l, _ := s.Line("a")
		assert.Equal(t, "/uploads/a.jpg", l.Product.Images[0].URL)

		lines := s.Lines()
		lines[0].Quantity = 42
		lines[0].Product.Images[0].URL = "mutated"
		l, _ = s.Line("a")
		assert.Equal(t, 1, l.Quantity)
		assert.Equal(t, "/uploads/a.jpg", l.Product.Images[0].URL)
	})

	t.Run("no stock bound", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, cart.NewMemoryRepository())
		p := product("a", "1", 1)
		require.NoError(t, s.AddToCart(ctx, p))
		assert.False(t, s.CanIncrement("a"))
		require.NoError(t, s.AddToCart(ctx, p))
		l, _ := s.Line("a")
		assert.Equal(t, 2, l.Quantity)
	})

	t.Run("add quantity", func(t *testing.T) {
		t.Parallel()
		s := newStore(t, cart.NewMemoryRepository())
		require.NoError(t, s.AddQuantity(ctx, product("a", "2.5", 10), 3))
		require.NoError(t, s.AddQuantity(ctx, product("a", "2.5", 10), 2))
		l, _ := s.Line("a")
		assert.Equal(t, 5, l.Quantity)
		assert.True(t, s.CanIncrement("a"))

		assert.ErrorIs(t, s.AddQuantity(ctx, product("b", "1", 1), 0), cart.ErrInvalidQuantity)
		assert.ErrorIs(t, s.AddToCart(ctx, catalog.Product{}), cart.ErrMissingProductID)
		assert.Equal(t, 1, s.Len())
	})
}

func TestRemoveAndUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fill := func(t *testing.T) (*cart.Store, *cart.MemoryRepository) {
		repo := cart.NewMemoryRepository()
		s := newStore(t, repo)
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, s.AddToCart(ctx, product(id, "1", 10)))
		}
		return s, repo
	}

	t.Run("remove", func(t *testing.T) {
		t.Parallel()
		s, _ := fill(t)
		require.NoError(t, s.RemoveFromCart(ctx, "b"))
		_, ok := s.Line("b")
		assert.False(t, ok)
		assert.Equal(t, 2, s.Len())

		require.NoError(t, s.RemoveFromCart(ctx, "missing"))
		assert.Equal(t, 2, s.Len())
	})

	t.Run("update is absolute", func(t *testing.T) {
		t.Parallel()
		s, _ := fill(t)
		require.NoError(t, s.UpdateQuantity(ctx, "a", 7))
		require.NoError(t, s.UpdateQuantity(ctx, "a", 4))
		l, _ := s.Line("a")
		assert.Equal(t, 4, l.Quantity)
	})

	t.Run("update of absent product", func(t *testing.T) {
		t.Parallel()
		s, _ := fill(t)
		require.NoError(t, s.UpdateQuantity(ctx, "missing", 3))
		_, ok := s.Line("missing")
		assert.False(t, ok)
		assert.Equal(t, 3, s.Len())
	})

	for _, q := range []int{0, -1, -100} {
		t.Run(fmt.Sprintf("update to %d equals remove", q), func(t *testing.T) {
			t.Parallel()
			updated, updatedRepo := fill(t)
			removed, removedRepo := fill(t)

			require.NoError(t, updated.UpdateQuantity(ctx, "b", q))
			require.NoError(t, removed.RemoveFromCart(ctx, "b"))

			assert.Equal(t, removed.Lines(), updated.Lines())
			a, err := updatedRepo.Load(ctx, cart.Guest)
			require.NoError(t, err)
			b, err := removedRepo.Load(ctx, cart.Guest)
			require.NoError(t, err)
			assert.Equal(t, b, a)
		})
	}

	t.Run("remove all", func(t *testing.T) {
		t.Parallel()
		s, repo := fill(t)
		require.NoError(t, s.RemoveAll(ctx, "a", "c", "missing"))
		lines := s.Lines()
		require.Len(t, lines, 1)
		assert.Equal(t, "b", lines[0].Product.ID)

		stored, err := repo.Load(ctx, cart.Guest)
		require.NoError(t, err)
		assert.Equal(t, lines, stored)
	})

	t.Run("clear", func(t *testing.T) {
		t.Parallel()
		s, repo := fill(t)
		require.NoError(t, s.ClearCart(ctx))
		assert.Zero(t, s.Len())
		stored, err := repo.Load(ctx, cart.Guest)
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
}

func TestTotal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newStore(t, cart.NewMemoryRepository())
	vase := product("vase", "12.10", 5)
	rug := product("rug", "0.30", 5)
	require.NoError(t, s.AddQuantity(ctx, vase, 3))
	require.NoError(t, s.AddToCart(ctx, rug))

	assert.Equal(t, "36.6", s.Total().String())

	// A live price change does not reach the snapshot.
	vase.Price = decimal.NewFromInt(1000)
	require.NoError(t, s.AddToCart(ctx, vase))
	assert.Equal(t, "48.7", s.Total().String())
	assert.True(t, cart.Total(s.Lines()).Equal(s.Total()))
	assert.Equal(t, 5, cart.Count(s.Lines()))
}

func TestWriteThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := cart.NewMemoryRepository()
	s := newStore(t, repo)
	alice := &identity.Identity{ID: "alice", Role: identity.Customer}
	require.NoError(t, s.SwitchPartition(ctx, alice))

	require.NoError(t, s.AddToCart(ctx, product("a", "1", 1)))
	stored, err := repo.Load(ctx, cart.PartitionFor(alice))
	require.NoError(t, err)
	assert.Equal(t, s.Lines(), stored)

	guest, err := repo.Load(ctx, cart.Guest)
	require.NoError(t, err)
	assert.Empty(t, guest)
}

func TestPartitionIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ids := func(lines []cart.Line) []string {
		out := make([]string, 0, len(lines))
		for _, l := range lines {
			out = append(out, l.Product.ID)
		}
		return out
	}

	repos := map[string]func(t *testing.T) cart.Repository{
		"memory": func(t *testing.T) cart.Repository { return cart.NewMemoryRepository() },
		"kv": func(t *testing.T) cart.Repository {
			return cart.NewKVRepository(kvstore.NewMemoryStore())
		},
		"redis": func(t *testing.T) cart.Repository {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return cart.NewKVRepository(kvstore.NewRedisStore(client, "test:"))
		},
	}

	for name, mk := range repos {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			repo := mk(t)
			s := newStore(t, repo)
			a := &identity.Identity{ID: "A", Role: identity.Customer}
			b := &identity.Identity{ID: "B", Role: identity.Artisan}

			// Anonymous
			require.NoError(t, s.SwitchPartition(ctx, nil))
			require.NoError(t, s.AddToCart(ctx, product("g1", "1", 9)))

			// Authenticated(A): starts empty, guest lines not merged.
			require.NoError(t, s.SwitchPartition(ctx, a))
			assert.Zero(t, s.Len())
			require.NoError(t, s.AddToCart(ctx, product("a1", "2", 9)))
			require.NoError(t, s.AddToCart(ctx, product("a2", "3", 9)))

			// Anonymous again: the guest cart is back.
			require.NoError(t, s.SwitchPartition(ctx, nil))
			assert.Equal(t, []string{"g1"}, ids(s.Lines()))
			require.NoError(t, s.AddToCart(ctx, product("g2", "1", 9)))

			// Authenticated(B)
			require.NoError(t, s.SwitchPartition(ctx, b))
			assert.Zero(t, s.Len())
			require.NoError(t, s.AddToCart(ctx, product("b1", "5", 9)))

			for key, want := range map[cart.PartitionKey][]string{
				cart.Guest:           {"g1", "g2"},
				cart.PartitionFor(a): {"a1", "a2"},
				cart.PartitionFor(b): {"b1"},
			} {
				stored, err := repo.Load(ctx, key)
				require.NoError(t, err)
				assert.Equal(t, want, ids(stored), key)
			}

			// Back to A restores exactly what A left.
			require.NoError(t, s.SwitchPartition(ctx, a))
			assert.Equal(t, []string{"a1", "a2"}, ids(s.Lines()))
			assert.Equal(t, "5", s.Total().String())
		})
	}
}

func TestPersistenceFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("save failure keeps the mutation", func(t *testing.T) {
		t.Parallel()
		repo := &failingRepo{MemoryRepository: cart.NewMemoryRepository(), failSave: true}
		s := newStore(t, repo)

		err := s.AddToCart(ctx, product("a", "1", 1))
		assert.ErrorIs(t, err, cart.ErrSaveFailed)
		assert.ErrorIs(t, err, errDisk)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("load failure falls back to empty", func(t *testing.T) {
		t.Parallel()
		repo := &failingRepo{MemoryRepository: cart.NewMemoryRepository()}
		s := newStore(t, repo)
		require.NoError(t, s.AddToCart(ctx, product("a", "1", 1)))

		repo.failLoad = true
		who := &identity.Identity{ID: "u", Role: identity.Customer}
		err := s.SwitchPartition(ctx, who)
		assert.ErrorIs(t, err, cart.ErrLoadFailed)
		assert.Equal(t, cart.PartitionFor(who), s.Partition())
		assert.Zero(t, s.Len())
	})
}

func TestKVRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stored layout", func(t *testing.T) {
		t.Parallel()
		kv := kvstore.NewMemoryStore()
		repo := cart.NewKVRepository(kv)
		p := product("p1", "4.5", 3)
		p.Category = catalog.Ref{ID: "c1", Name: "Pottery"}
		require.NoError(t, repo.Save(ctx, cart.Guest, []cart.Line{{Product: p, Quantity: 2}}))

		raw, err := kv.Get(ctx, "cart_guest")
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"_id":"p1"`)
		assert.Contains(t, string(raw), `"quantity":2`)

		lines, err := repo.Load(ctx, cart.Guest)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, 2, lines[0].Quantity)
		assert.Equal(t, "Pottery", lines[0].Product.Category.Name)
		assert.True(t, lines[0].Product.Price.Equal(decimal.RequireFromString("4.5")))
	})

	t.Run("legacy blob with numeric price and string refs", func(t *testing.T) {
		t.Parallel()
		kv := kvstore.NewMemoryStore()
		blob := `[{"_id":"p1","name":"Vase","price":12.5,"stock":2,"category":"c1","images":["/uploads/v.jpg"],"quantity":1},` +
			`{"_id":"p1","name":"dup","price":1,"quantity":3},` +
			`{"_id":"p2","name":"zero","price":1,"quantity":0}]`
		require.NoError(t, kv.Set(ctx, "cart_u1", []byte(blob)))

		lines, err := cart.NewKVRepository(kv).Load(ctx, cart.PartitionKey("user:u1"))
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, "Vase", lines[0].Product.Name)
		assert.Equal(t, "c1", lines[0].Product.Category.ID)
		assert.Equal(t, "/uploads/v.jpg", lines[0].Product.Images[0].URL)
	})

	t.Run("absent partition", func(t *testing.T) {
		t.Parallel()
		lines, err := cart.NewKVRepository(kvstore.NewMemoryStore()).Load(ctx, cart.Guest)
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("corrupt blob", func(t *testing.T) {
		t.Parallel()
		kv := kvstore.NewMemoryStore()
		require.NoError(t, kv.Set(ctx, "cart_guest", []byte("{")))
		_, err := cart.NewKVRepository(kv).Load(ctx, cart.Guest)
		assert.ErrorIs(t, err, cart.ErrCorruptCart)
	})

	t.Run("file store round trip", func(t *testing.T) {
		t.Parallel()
		fs, err := kvstore.NewFileStore(t.TempDir())
		require.NoError(t, err)
		repo := cart.NewKVRepository(fs)

		s := newStore(t, repo)
		require.NoError(t, s.AddQuantity(ctx, product("p1", "3", 3), 2))

		reopened := newStore(t, repo)
		require.NoError(t, reopened.SwitchPartition(ctx, nil))
		assert.Equal(t, s.Lines(), reopened.Lines())
	})
}

func TestConcurrentMutations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := cart.NewMemoryRepository()
	s := newStore(t, repo)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AddToCart(ctx, product(fmt.Sprintf("p%d", i%4), "1", 100))
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 20, s.Count())

	stored, err := repo.Load(ctx, cart.Guest)
	require.NoError(t, err)
	assert.Equal(t, 20, cart.Count(stored))
}
