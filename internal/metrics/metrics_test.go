package metrics

import "testing"

func TestCollectorSnapshot(t *testing.T) {
	c := New()

	c.RecordNavigation()
	c.RecordNavigation()
	c.RecordNotFound()
	c.RecordFragment(true)
	c.RecordFragment(false)
	c.RecordScript(true)
	c.RecordPrefetch(true)
	c.RecordPrefetch(false)
	c.RecordSuperseded()

	s := c.Snapshot()
	if s.Navigations != 2 {
		t.Errorf("Navigations = %d, want 2", s.Navigations)
	}
	if s.NotFoundRenders != 1 {
		t.Errorf("NotFoundRenders = %d, want 1", s.NotFoundRenders)
	}
	if s.FragmentsResolved != 1 || s.FragmentsFailed != 1 {
		t.Errorf("fragments = %d/%d, want 1/1", s.FragmentsResolved, s.FragmentsFailed)
	}
	if s.ScriptsLoaded != 1 || s.ScriptsFailed != 0 {
		t.Errorf("scripts = %d/%d, want 1/0", s.ScriptsLoaded, s.ScriptsFailed)
	}
	if s.PrefetchWarmed != 1 || s.PrefetchSkipped != 1 {
		t.Errorf("prefetch = %d/%d, want 1/1", s.PrefetchWarmed, s.PrefetchSkipped)
	}
	if s.Superseded != 1 {
		t.Errorf("Superseded = %d, want 1", s.Superseded)
	}
}
