package storage

import (
	"math/big"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/eigmax/zkMIPS/types"
)

func testStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(t.TempDir())
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close storage: %v", err)
		}
	})
	return s
}

func TestRunLifecycle(t *testing.T) {
	c := qt.New(t)
	s := testStorage(t)

	run, err := s.NewRun(types.BackendGroth16, 4,
		types.HexBytes{0x01}, types.HexBytes{0x02})
	c.Assert(err, qt.IsNil)
	c.Assert(run.ID, qt.Not(qt.Equals), "")
	c.Assert(run.Status, qt.Equals, RunStatusPending)

	loaded, err := s.Run(run.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(loaded.Backend, qt.Equals, types.BackendGroth16)
	c.Assert(loaded.Segments, qt.Equals, 4)
	c.Assert([]byte(loaded.StartRoot), qt.DeepEquals, []byte{0x01})

	c.Assert(s.UpdateRunStatus(run.ID, RunStatusReducing, ""), qt.IsNil)
	loaded, err = s.Run(run.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(loaded.Status, qt.Equals, RunStatusReducing)
	c.Assert(loaded.UpdatedAt.After(loaded.CreatedAt) || loaded.UpdatedAt.Equal(loaded.CreatedAt), qt.IsTrue)

	c.Assert(s.UpdateRunStatus(run.ID, RunStatusFailed, "chain break at boundary 2"), qt.IsNil)
	loaded, err = s.Run(run.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(loaded.Status, qt.Equals, RunStatusFailed)
	c.Assert(loaded.Error, qt.Equals, "chain break at boundary 2")
}

func TestRunNotFound(t *testing.T) {
	c := qt.New(t)
	s := testStorage(t)

	_, err := s.Run("no-such-run")
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	c.Assert(s.UpdateRunStatus("no-such-run", RunStatusDone, ""), qt.ErrorIs, ErrNotFound)
}

func TestListRunsAndCleanup(t *testing.T) {
	c := qt.New(t)
	s := testStorage(t)

	r1, err := s.NewRun(types.BackendGroth16, 2, types.HexBytes{0x01}, types.HexBytes{0x02})
	c.Assert(err, qt.IsNil)
	r2, err := s.NewRun(types.BackendPlonk, 8, types.HexBytes{0x03}, types.HexBytes{0x04})
	c.Assert(err, qt.IsNil)

	runs, err := s.ListRuns()
	c.Assert(err, qt.IsNil)
	c.Assert(runs, qt.HasLen, 2)

	c.Assert(s.CleanupRun(r1.ID), qt.IsNil)
	runs, err = s.ListRuns()
	c.Assert(err, qt.IsNil)
	c.Assert(runs, qt.HasLen, 1)
	c.Assert(runs[0].ID, qt.Equals, r2.ID)

	_, err = s.Run(r1.ID)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestFinalProofRoundTrip(t *testing.T) {
	c := qt.New(t)
	s := testStorage(t)

	run, err := s.NewRun(types.BackendGroth16, 2, types.HexBytes{0x01}, types.HexBytes{0x02})
	c.Assert(err, qt.IsNil)

	_, err = s.FinalProof(run.ID)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	fp := &types.FinalProof{
		Backend:      types.BackendGroth16,
		Proof:        types.HexBytes{0xde, 0xad, 0xbe, 0xef},
		VkRoot:       big.NewInt(111),
		PublicDigest: big.NewInt(222),
	}
	c.Assert(s.SetFinalProof(run.ID, fp), qt.IsNil)

	got, err := s.FinalProof(run.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Backend, qt.Equals, fp.Backend)
	c.Assert([]byte(got.Proof), qt.DeepEquals, []byte(fp.Proof))
	c.Assert(got.VkRoot.Cmp(fp.VkRoot), qt.Equals, 0)
	c.Assert(got.PublicDigest.Cmp(fp.PublicDigest), qt.Equals, 0)
}

func TestArtifactRegistry(t *testing.T) {
	c := qt.New(t)
	s := testStorage(t)

	_, err := s.ArtifactRecord("shrink", "v1")
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	rec := &ArtifactRecord{
		Shape:   "shrink",
		Version: "v1",
		Files: map[string]types.HexBytes{
			"circuit.ccs":  {0x01, 0x02},
			"verifying.vk": {0x03, 0x04},
		},
		BuiltAt: time.Now().UTC().Truncate(time.Second),
	}
	c.Assert(s.SetArtifactRecord(rec), qt.IsNil)

	got, err := s.ArtifactRecord("shrink", "v1")
	c.Assert(err, qt.IsNil)
	c.Assert(got.Shape, qt.Equals, "shrink")
	c.Assert(got.Files, qt.HasLen, 2)
	c.Assert([]byte(got.Files["circuit.ccs"]), qt.DeepEquals, []byte{0x01, 0x02})

	// Same shape under a new version coexists with the old record.
	rec2 := &ArtifactRecord{Shape: "shrink", Version: "v2", BuiltAt: time.Now().UTC()}
	c.Assert(s.SetArtifactRecord(rec2), qt.IsNil)
	recs, err := s.ListArtifactRecords()
	c.Assert(err, qt.IsNil)
	c.Assert(recs, qt.HasLen, 2)
}

func TestRunStatusString(t *testing.T) {
	c := qt.New(t)
	c.Assert(RunStatusPending.String(), qt.Equals, "pending")
	c.Assert(RunStatusDone.String(), qt.Equals, "done")
	c.Assert(RunStatus(99).String(), qt.Equals, "unknown(99)")
}
