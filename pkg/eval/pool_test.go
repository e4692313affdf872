package eval

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/rigeval/pkg/anim"
	"github.com/Faultbox/rigeval/pkg/rig"
)

type poolFixture struct {
	reg    *anim.Registry
	mesh   *anim.SkeletalMesh
	rc     *RuntimeContext
	builds atomic.Int32
}

func newPoolFixture(t *testing.T) *poolFixture {
	t.Helper()
	mesh := testMesh(t)
	return &poolFixture{
		reg:  anim.NewRegistry(),
		mesh: mesh,
		rc:   testContext(t, mesh, rig.DefaultConfig()),
	}
}

func (f *poolFixture) factory(key anim.MeshHandle) (*PooledData, error) {
	f.builds.Add(1)
	mesh, ok := key.Get()
	if !ok {
		return nil, ErrStaleKey
	}
	pose, err := anim.NewPose(mesh, 0)
	if err != nil {
		return nil, err
	}
	o := NewOrchestrator()
	if err := o.Prime(f.rc, pose, 0); err != nil {
		return nil, err
	}
	return &PooledData{Context: f.rc, Orchestrator: o}, nil
}

func TestPoolReuse(t *testing.T) {
	f := newPoolFixture(t)
	key := f.reg.Register(f.mesh)
	p := NewPool(f.factory)

	a, err := p.RequestData(key)
	require.NoError(t, err)
	assert.Equal(t, key, a.Key)
	assert.Zero(t, p.Len())

	b, err := p.RequestData(key)
	require.NoError(t, err)
	assert.NotSame(t, a, b, "checked-out entries are never shared")
	assert.Equal(t, int32(2), f.builds.Load())

	p.FreeData(key, a)
	p.FreeData(key, b)
	assert.Equal(t, 2, p.Len())

	c, err := p.RequestData(key)
	require.NoError(t, err)
	assert.Same(t, b, c, "last freed entry is reused first")
	assert.Equal(t, int32(2), f.builds.Load())
	assert.Equal(t, 1, p.Len())

	p.FreeData(key, nil)
	assert.Equal(t, 1, p.Len())
}

func TestPoolFreeUnderForeignKey(t *testing.T) {
	f := newPoolFixture(t)
	head := f.reg.Register(f.mesh)
	body := f.reg.Register(f.mesh)
	p := NewPool(f.factory)

	d, err := p.RequestData(head)
	require.NoError(t, err)
	p.FreeData(body, d)
	assert.Zero(t, p.Len())

	e, err := p.RequestData(body)
	require.NoError(t, err)
	assert.NotSame(t, d, e)
	assert.Equal(t, body, e.Key)
	assert.Equal(t, int32(2), f.builds.Load())
}

func TestPoolStaleKey(t *testing.T) {
	f := newPoolFixture(t)
	key := f.reg.Register(f.mesh)
	p := NewPool(f.factory)

	require.True(t, f.reg.Unload(key))
	_, err := p.RequestData(key)
	assert.ErrorIs(t, err, ErrStaleKey)
	assert.Zero(t, f.builds.Load())

	_, err = p.RequestData(anim.MeshHandle{})
	assert.ErrorIs(t, err, ErrStaleKey)
}

func TestPoolFactoryError(t *testing.T) {
	f := newPoolFixture(t)
	key := f.reg.Register(f.mesh)
	boom := errors.New("boom")
	p := NewPool(func(anim.MeshHandle) (*PooledData, error) { return nil, boom })

	_, err := p.RequestData(key)
	assert.ErrorIs(t, err, boom)
}

func TestPoolGarbageCollect(t *testing.T) {
	f := newPoolFixture(t)
	live := f.reg.Register(f.mesh)
	dead := f.reg.Register(f.mesh)
	p := NewPool(f.factory)

	checkout := func(key anim.MeshHandle, n int) {
		entries := make([]*PooledData, n)
		for i := range entries {
			d, err := p.RequestData(key)
			require.NoError(t, err)
			entries[i] = d
		}
		for _, d := range entries {
			p.FreeData(key, d)
		}
	}
	checkout(live, 1)
	checkout(dead, 2)
	require.Equal(t, 3, p.Len())
	require.Equal(t, 2, p.Keys())

	assert.Zero(t, p.GarbageCollect())
	assert.Equal(t, 3, p.Len())

	require.True(t, f.reg.Unload(dead))
	assert.Equal(t, 2, p.GarbageCollect())
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 1, p.Keys())

	// The slot is reused with a new generation; the old key stays dead.
	reborn := f.reg.Register(f.mesh)
	assert.NotEqual(t, dead, reborn)
	_, err := p.RequestData(dead)
	assert.ErrorIs(t, err, ErrStaleKey)
}

func TestPoolConcurrentExclusiveOwnership(t *testing.T) {
	f := newPoolFixture(t)
	key := f.reg.Register(f.mesh)
	p := NewPool(f.factory)

	const (
		workers = 8
		frames  = 50
	)
	var owners sync.Map

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			pose, err := anim.NewPose(f.mesh, 0)
			if err != nil {
				return err
			}
			curves := anim.NewCurveSet()
			for i := 0; i < frames; i++ {
				d, err := p.RequestData(key)
				if err != nil {
					return err
				}
				if _, loaded := owners.LoadOrStore(d, w); loaded {
					return fmt.Errorf("entry %p checked out twice", d)
				}

				curves.Set("JawOpen", float32(i%10)/10, 0)
				if res := d.Update(pose, curves, i%2); res != Evaluated {
					return fmt.Errorf("frame %d: %s", i, res)
				}

				owners.Delete(d)
				p.FreeData(key, d)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	builds := int(f.builds.Load())
	assert.LessOrEqual(t, builds, workers)
	assert.Equal(t, builds, p.Len(), "every built entry is back in the pool")
}
