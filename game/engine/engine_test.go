package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// startedGame returns a playing game with Alice (admin) and Bob
func startedGame(t *testing.T, opts Options) (*GameEngine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	eng := New("room-1", opts, clock.Now)
	if _, err := eng.Join("a", "Alice"); err != nil {
		t.Fatalf("join a: %v", err)
	}
	if _, err := eng.Join("b", "Bob"); err != nil {
		t.Fatalf("join b: %v", err)
	}
	if err := eng.Start("a"); err != nil {
		t.Fatalf("start: %v", err)
	}
	return eng, clock
}

func mustAdd(t *testing.T, eng *GameEngine, player, word string) AddWordResult {
	t.Helper()
	res, err := eng.AddWord(player, word)
	if err != nil {
		t.Fatalf("AddWord(%s, %q): %v", player, word, err)
	}
	return res
}

func assertSingleTurn(t *testing.T, s *GameState) {
	t.Helper()
	count := 0
	for i, p := range s.Players {
		if p.IsCurrentTurn {
			count++
			if i != s.CurrentPlayerIndex {
				t.Errorf("turn flag on index %d, currentPlayerIndex %d", i, s.CurrentPlayerIndex)
			}
		}
	}
	if len(s.Players) > 0 && count != 1 {
		t.Errorf("expected exactly one current player, got %d", count)
	}
}

func TestNew(t *testing.T) {
	clock := newFakeClock()
	eng := New("g1", Options{RequiredWords: []string{"cheese"}, TurnTimeLimit: -5}, clock.Now)
	s := eng.State()

	if s.GameID != "g1" {
		t.Errorf("expected game id g1, got %s", s.GameID)
	}
	if s.Phase != PhaseLobby {
		t.Errorf("expected lobby, got %s", s.Phase)
	}
	if !reflect.DeepEqual(s.RequiredWords, DefaultRequiredWords) {
		t.Errorf("expected default required words, got %v", s.RequiredWords)
	}
	if len(s.HasRequiredWords) != len(s.RequiredWords) {
		t.Errorf("hasRequiredWords length %d, want %d", len(s.HasRequiredWords), len(s.RequiredWords))
	}
	if s.TurnTimeLimit != 0 {
		t.Errorf("expected negative limit clamped to 0, got %d", s.TurnTimeLimit)
	}
	if !s.StartedAt.Equal(clock.Now()) {
		t.Errorf("expected startedAt %v, got %v", clock.Now(), s.StartedAt)
	}
}

func TestJoin(t *testing.T) {
	eng := New("g1", Options{}, newFakeClock().Now)

	res, err := eng.Join("a", "Alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if !res.Changed || res.Reconnected || !res.Player.IsCurrentTurn {
		t.Errorf("unexpected first join result: %+v", res)
	}
	if eng.State().StartedByID != "a" {
		t.Errorf("expected admin a, got %q", eng.State().StartedByID)
	}

	res, err = eng.Join("b", "Bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if res.Player.IsCurrentTurn {
		t.Error("second player should not hold the turn")
	}
	if eng.State().StartedByID != "a" {
		t.Error("admin must not change on later joins")
	}

	t.Run("reconnect without change", func(t *testing.T) {
		res, err := eng.Join("a", "")
		if err != nil {
			t.Fatalf("rejoin: %v", err)
		}
		if !res.Reconnected || res.Changed {
			t.Errorf("expected reconnect with no change, got %+v", res)
		}
		if len(eng.State().Players) != 2 {
			t.Errorf("rejoin must not add a seat")
		}
	})

	t.Run("reconnect after disconnect", func(t *testing.T) {
		if !eng.Disconnect("b") {
			t.Fatal("expected disconnect to change state")
		}
		res, err := eng.Join("b", "Bob")
		if err != nil {
			t.Fatalf("rejoin: %v", err)
		}
		if !res.Reconnected || !res.Changed {
			t.Errorf("expected reconnect with change, got %+v", res)
		}
	})

	t.Run("name required for new players", func(t *testing.T) {
		if _, err := eng.Join("c", ""); !errors.Is(err, ErrNameRequired) {
			t.Errorf("expected ErrNameRequired, got %v", err)
		}
	})
}

func TestStart(t *testing.T) {
	clock := newFakeClock()
	eng := New("g1", Options{TurnTimeLimit: 30}, clock.Now)

	if err := eng.Start("a"); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("expected ErrNotAdmin on empty room, got %v", err)
	}

	eng.Join("a", "Alice")
	eng.Join("b", "Bob")

	before := eng.Snapshot()
	if err := eng.Start("b"); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("expected ErrNotAdmin, got %v", err)
	}
	if !reflect.DeepEqual(before, eng.State()) {
		t.Error("rejected start modified state")
	}

	clock.Advance(time.Minute)
	if err := eng.Start("a"); err != nil {
		t.Fatalf("start: %v", err)
	}
	s := eng.State()
	if s.Phase != PhasePlaying {
		t.Errorf("expected playing, got %s", s.Phase)
	}
	if !s.StartedAt.Equal(clock.Now()) {
		t.Errorf("startedAt not reset on start")
	}
	if s.LastTurnStartTime == nil || !s.LastTurnStartTime.Equal(clock.Now()) {
		t.Errorf("expected timer baseline at start, got %v", s.LastTurnStartTime)
	}

	if err := eng.Start("a"); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStartWithoutLimitLeavesBaselineNil(t *testing.T) {
	eng, _ := startedGame(t, Options{})
	if eng.State().LastTurnStartTime != nil {
		t.Errorf("expected nil baseline without a limit")
	}
}

func TestCompleteSentenceScenario(t *testing.T) {
	eng, _ := startedGame(t, Options{RequiredWords: []string{"cheese", "pants"}})

	mustAdd(t, eng, "a", "The")
	mustAdd(t, eng, "b", "cheese")
	if got := eng.State().HasRequiredWords; !reflect.DeepEqual(got, []bool{true, false}) {
		t.Fatalf("after cheese: hasRequiredWords = %v", got)
	}

	res := mustAdd(t, eng, "a", "pants.")
	s := eng.State()
	if !reflect.DeepEqual(s.HasRequiredWords, []bool{true, true}) {
		t.Errorf("after pants.: hasRequiredWords = %v", s.HasRequiredWords)
	}
	if !res.Completed {
		t.Error("expected completion")
	}
	if s.Phase != PhaseComplete {
		t.Errorf("expected complete, got %s", s.Phase)
	}
	if s.EndedAt == nil {
		t.Error("expected endedAt to be set")
	}
	if want := []string{"The", "cheese", "pants."}; !reflect.DeepEqual(s.Sentence(), want) {
		t.Errorf("sentence = %v, want %v", s.Sentence(), want)
	}
}

func TestAllMatchedWithoutPunctuationDoesNotComplete(t *testing.T) {
	eng, _ := startedGame(t, Options{})

	mustAdd(t, eng, "a", "Cheese")
	res := mustAdd(t, eng, "b", "PANTS")
	if res.Completed {
		t.Fatal("game must not complete without terminal punctuation")
	}
	if !res.NeedsPunctuation {
		t.Error("expected punctuation hint")
	}
	if eng.State().Phase != PhasePlaying {
		t.Errorf("expected playing, got %s", eng.State().Phase)
	}

	res = mustAdd(t, eng, "a", "today!")
	if !res.Completed {
		t.Error("expected completion once a word ends the sentence")
	}
}

func TestAddWordRules(t *testing.T) {
	eng, _ := startedGame(t, Options{})

	if _, err := eng.AddWord("b", "hello"); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("expected ErrNotYourTurn, got %v", err)
	}
	if _, err := eng.AddWord("a", "   "); !errors.Is(err, ErrEmptyWord) {
		t.Errorf("expected ErrEmptyWord, got %v", err)
	}

	res := mustAdd(t, eng, "a", "two words")
	if res.Word.Text != "two" {
		t.Errorf("expected only the first token, got %q", res.Word.Text)
	}
	if res.Word.AuthorName != "Alice" {
		t.Errorf("expected author Alice, got %q", res.Word.AuthorName)
	}
	if res.NextPlayer.ID != "b" {
		t.Errorf("expected next player b, got %s", res.NextPlayer.ID)
	}

	lobby := New("g2", Options{}, nil)
	lobby.Join("a", "Alice")
	if _, err := lobby.AddWord("a", "hi"); !errors.Is(err, ErrGameNotStarted) {
		t.Errorf("expected ErrGameNotStarted, got %v", err)
	}
}

func TestRoundRobin(t *testing.T) {
	clock := newFakeClock()
	eng := New("g1", Options{RequiredWords: []string{"never", "matched"}}, clock.Now)
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		eng.Join(id, "Player "+id)
	}
	eng.Start("a")

	for i := 0; i < 10; i++ {
		want := ids[i%len(ids)]
		cur, _ := eng.State().CurrentPlayer()
		if cur.ID != want {
			t.Fatalf("turn %d: expected %s, got %s", i, want, cur.ID)
		}
		mustAdd(t, eng, want, "word")
		assertSingleTurn(t, eng.State())
	}
}

func TestSinglePlayerKeepsTurn(t *testing.T) {
	eng := New("g1", Options{}, nil)
	eng.Join("a", "Alice")
	eng.Start("a")
	mustAdd(t, eng, "a", "one")
	mustAdd(t, eng, "a", "two")
	if cur, _ := eng.State().CurrentPlayer(); cur.ID != "a" {
		t.Errorf("expected turn to stay with a, got %s", cur.ID)
	}
}

func TestDeleteWordRecomputesRequired(t *testing.T) {
	eng, _ := startedGame(t, Options{})

	mustAdd(t, eng, "a", "the")
	mustAdd(t, eng, "b", "cheese")
	mustAdd(t, eng, "a", "pants")
	mustAdd(t, eng, "b", "fell")

	if _, err := eng.DeleteWord("a", 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	s := eng.State()
	if !reflect.DeepEqual(s.HasRequiredWords, []bool{true, false}) {
		t.Errorf("hasRequiredWords = %v, want [true false]", s.HasRequiredWords)
	}
	if want := []string{"the", "cheese", "fell"}; !reflect.DeepEqual(s.Sentence(), want) {
		t.Errorf("sentence = %v, want %v", s.Sentence(), want)
	}

	// Re-adding an equivalent word satisfies the slot again.
	cur, _ := s.CurrentPlayer()
	mustAdd(t, eng, cur.ID, "Pants,")
	if !eng.State().HasRequiredWords[1] {
		t.Error("expected slot 1 satisfied again")
	}
}

func TestDeleteWordRematchesDuplicate(t *testing.T) {
	eng, _ := startedGame(t, Options{})

	mustAdd(t, eng, "a", "cheese")
	mustAdd(t, eng, "b", "cheese")
	if eng.State().Words[1].IsRequired {
		t.Fatal("second cheese should not claim an already matched slot")
	}

	if _, err := eng.DeleteWord("a", 0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	s := eng.State()
	if !s.HasRequiredWords[0] {
		t.Error("remaining cheese should satisfy slot 0")
	}
	w := s.Words[0]
	if !w.IsRequired || w.MatchedRequiredWordIndex == nil || *w.MatchedRequiredWordIndex != 0 {
		t.Errorf("remaining word not re-annotated: %+v", w)
	}
}

func TestDeleteWordRules(t *testing.T) {
	eng, _ := startedGame(t, Options{})
	mustAdd(t, eng, "a", "hello")

	if _, err := eng.DeleteWord("a", 5); !errors.Is(err, ErrWordIndexOutOfRange) {
		t.Errorf("expected ErrWordIndexOutOfRange, got %v", err)
	}
	if _, err := eng.DeleteWord("a", -1); !errors.Is(err, ErrWordIndexOutOfRange) {
		t.Errorf("expected ErrWordIndexOutOfRange, got %v", err)
	}
}

func TestNonAdminActionsLeaveStateUnchanged(t *testing.T) {
	eng, clock := startedGame(t, Options{TurnTimeLimit: 20})
	mustAdd(t, eng, "a", "hello")
	clock.Advance(5 * time.Second)

	before := eng.Snapshot()
	checks := []struct {
		name string
		run  func() error
	}{
		{"delete-word", func() error { _, err := eng.DeleteWord("b", 0); return err }},
		{"change-turn", func() error { return eng.ChangeTurn("b", "a") }},
		{"remove-player", func() error { _, err := eng.RemovePlayer("b", "a"); return err }},
		{"update-turn-time-limit", func() error { _, err := eng.UpdateTurnTimeLimit("b", 60); return err }},
		{"start-game", func() error { return eng.Start("b") }},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			err := c.run()
			if err == nil {
				t.Fatal("expected rejection")
			}
			if !IsAdvisory(err) {
				t.Errorf("expected advisory error, got %v", err)
			}
			if !reflect.DeepEqual(before, eng.State()) {
				t.Error("state changed after rejected action")
			}
		})
	}
}

func TestChangeTurn(t *testing.T) {
	eng, clock := startedGame(t, Options{TurnTimeLimit: 30})
	eng.Join("c", "Carol")

	clock.Advance(10 * time.Second)
	if err := eng.ChangeTurn("a", "c"); err != nil {
		t.Fatalf("change turn: %v", err)
	}
	s := eng.State()
	if s.CurrentPlayerIndex != 2 {
		t.Errorf("expected index 2, got %d", s.CurrentPlayerIndex)
	}
	assertSingleTurn(t, s)
	if !s.LastTurnStartTime.Equal(clock.Now()) {
		t.Error("expected change-turn to restart the timer baseline")
	}

	if err := eng.ChangeTurn("a", "nobody"); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestUpdateTurnTimeLimit(t *testing.T) {
	eng, clock := startedGame(t, Options{})

	clock.Advance(3 * time.Second)
	got, err := eng.UpdateTurnTimeLimit("a", 45)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got != 45 {
		t.Errorf("expected 45, got %d", got)
	}
	if s := eng.State(); s.LastTurnStartTime == nil || !s.LastTurnStartTime.Equal(clock.Now()) {
		t.Error("enabling a limit must restart the baseline")
	}

	got, err = eng.UpdateTurnTimeLimit("a", -10)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got != 0 {
		t.Errorf("expected clamp to 0, got %d", got)
	}
	if eng.State().LastTurnStartTime != nil {
		t.Error("disabling the limit must clear the baseline")
	}
}

func TestAdvanceWithoutLimitLeavesBaselineNil(t *testing.T) {
	eng, _ := startedGame(t, Options{})
	mustAdd(t, eng, "a", "hello")
	if eng.State().LastTurnStartTime != nil {
		t.Error("baseline must stay nil when no limit is set")
	}
}

func TestRemovePlayer(t *testing.T) {
	t.Run("current player removed", func(t *testing.T) {
		eng, _ := startedGame(t, Options{})
		eng.Join("c", "Carol")
		mustAdd(t, eng, "a", "x") // turn -> b

		removed, err := eng.RemovePlayer("a", "b")
		if err != nil {
			t.Fatalf("remove: %v", err)
		}
		if removed.ID != "b" {
			t.Errorf("expected b removed, got %s", removed.ID)
		}
		s := eng.State()
		cur, _ := s.CurrentPlayer()
		if cur.ID != "c" {
			t.Errorf("expected c to inherit the turn, got %s", cur.ID)
		}
		assertSingleTurn(t, s)
		for _, id := range s.ConnectedPlayers {
			if id == "b" {
				t.Error("removed player still connected")
			}
		}
	})

	t.Run("last seat wraps to zero", func(t *testing.T) {
		eng, _ := startedGame(t, Options{})
		mustAdd(t, eng, "a", "x") // turn -> b (index 1)
		if _, err := eng.RemovePlayer("a", "b"); err != nil {
			t.Fatalf("remove: %v", err)
		}
		s := eng.State()
		if s.CurrentPlayerIndex != 0 {
			t.Errorf("expected wrap to 0, got %d", s.CurrentPlayerIndex)
		}
		assertSingleTurn(t, s)
	})

	t.Run("earlier player removed keeps logical turn", func(t *testing.T) {
		eng, _ := startedGame(t, Options{})
		eng.Join("c", "Carol")
		mustAdd(t, eng, "a", "x")
		mustAdd(t, eng, "b", "y") // turn -> c (index 2)

		if _, err := eng.RemovePlayer("a", "b"); err != nil {
			t.Fatalf("remove: %v", err)
		}
		s := eng.State()
		cur, _ := s.CurrentPlayer()
		if cur.ID != "c" || s.CurrentPlayerIndex != 1 {
			t.Errorf("expected c at index 1, got %s at %d", cur.ID, s.CurrentPlayerIndex)
		}
		assertSingleTurn(t, s)
	})

	t.Run("everyone removed resets to lobby", func(t *testing.T) {
		eng, _ := startedGame(t, Options{})
		eng.RemovePlayer("a", "b")
		eng.RemovePlayer("a", "a")
		s := eng.State()
		if len(s.Players) != 0 {
			t.Fatalf("expected no players, got %d", len(s.Players))
		}
		if s.Phase != PhaseLobby || s.CurrentPlayerIndex != 0 {
			t.Errorf("expected lobby at index 0, got %s at %d", s.Phase, s.CurrentPlayerIndex)
		}
		if s.StartedByID != "a" {
			t.Error("admin must never be reassigned")
		}
	})

	t.Run("unknown target", func(t *testing.T) {
		eng, _ := startedGame(t, Options{})
		if _, err := eng.RemovePlayer("a", "zzz"); !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("expected ErrPlayerNotFound, got %v", err)
		}
	})
}

func TestCheckTimeoutScenario(t *testing.T) {
	eng, clock := startedGame(t, Options{TurnTimeLimit: 30})

	clock.Advance(29 * time.Second)
	if _, ok := eng.CheckTimeout(); ok {
		t.Fatal("turn must not expire early")
	}

	clock.Advance(2 * time.Second)
	to, ok := eng.CheckTimeout()
	if !ok {
		t.Fatal("expected timeout after 31s")
	}
	if to.TimedOut.ID != "a" || to.NextPlayer.ID != "b" {
		t.Errorf("unexpected timeout %+v", to)
	}
	s := eng.State()
	if cur, _ := s.CurrentPlayer(); cur.ID != "b" || !cur.IsCurrentTurn {
		t.Errorf("expected b to hold the turn, got %+v", cur)
	}
	if !s.LastTurnStartTime.Equal(clock.Now()) {
		t.Error("expected baseline restarted for b")
	}

	if _, ok := eng.CheckTimeout(); ok {
		t.Error("fresh turn must not expire immediately")
	}
}

func TestCheckTimeoutInactive(t *testing.T) {
	eng, clock := startedGame(t, Options{})
	clock.Advance(time.Hour)
	if _, ok := eng.CheckTimeout(); ok {
		t.Error("no timeout without a limit")
	}

	lobby := New("g", Options{TurnTimeLimit: 5}, clock.Now)
	lobby.Join("a", "Alice")
	clock.Advance(time.Hour)
	if _, ok := lobby.CheckTimeout(); ok {
		t.Error("no timeout in the lobby")
	}
}

func TestActionsAfterComplete(t *testing.T) {
	eng, _ := startedGame(t, Options{})
	mustAdd(t, eng, "a", "cheese")
	mustAdd(t, eng, "b", "pants!")
	if eng.State().Phase != PhaseComplete {
		t.Fatal("expected complete")
	}

	if _, err := eng.AddWord("a", "more"); !errors.Is(err, ErrGameComplete) {
		t.Errorf("add-word: expected ErrGameComplete, got %v", err)
	}
	if _, err := eng.DeleteWord("a", 0); !errors.Is(err, ErrGameComplete) {
		t.Errorf("delete-word: expected ErrGameComplete, got %v", err)
	}
	if err := eng.ChangeTurn("a", "b"); !errors.Is(err, ErrGameComplete) {
		t.Errorf("change-turn: expected ErrGameComplete, got %v", err)
	}
	if err := eng.Start("a"); !errors.Is(err, ErrGameComplete) {
		t.Errorf("start: expected ErrGameComplete, got %v", err)
	}
	if _, err := eng.Join("c", "Carol"); !errors.Is(err, ErrGameComplete) {
		t.Errorf("join: expected ErrGameComplete, got %v", err)
	}
	if _, err := eng.Join("a", "Alice"); err != nil {
		t.Errorf("reconnect after completion should succeed, got %v", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	eng, _ := startedGame(t, Options{})
	snap := eng.Snapshot()
	mustAdd(t, eng, "a", "cheese")
	eng.Restore(snap)
	if len(eng.State().Words) != 0 || eng.State().HasRequiredWords[0] {
		t.Error("restore did not roll back the word")
	}
}

func TestFromState(t *testing.T) {
	if _, err := FromState(nil, nil); err == nil {
		t.Error("expected error for nil state")
	}
	eng, err := FromState(&GameState{GameID: "old"}, nil)
	if err != nil {
		t.Fatalf("from state: %v", err)
	}
	if eng.State().Phase != PhaseLobby {
		t.Errorf("expected repaired phase lobby, got %s", eng.State().Phase)
	}
}

func TestIsAdvisory(t *testing.T) {
	if !IsAdvisory(ErrNotAdmin) {
		t.Error("ErrNotAdmin should be advisory")
	}
	if IsAdvisory(errors.New("disk full")) {
		t.Error("arbitrary errors are not advisory")
	}
}
