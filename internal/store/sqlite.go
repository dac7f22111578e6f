package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snapetech/sportsgrid/internal/model"
)

// SQLiteStore is the concrete Store backed by modernc.org/sqlite (pure Go,
// no cgo required). WAL mode lets readers run concurrently with a single
// in-flight writer, so the pool stays open (no SetMaxOpenConns(1)); the
// build transaction itself still serializes via BEGIN IMMEDIATE, enforced
// here by txMu rather than by starving the pool down to one connection.
type SQLiteStore struct {
	db *sql.DB

	txMu sync.Mutex // held between BeginPlan and CommitPlan/AbortPlan
	tx   *sql.Tx
}

// Open opens (creating if necessary) the SQLite database at path and
// applies all pending migrations.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrate: %w (stmt=%s)", err, stmt)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func epoch(t time.Time) int64       { return t.UTC().Unix() }
func fromEpoch(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func joinPackages(pkgs []string) string { return strings.Join(pkgs, ",") }

func splitPackages(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (s *SQLiteStore) UpsertEvent(e model.Event) error {
	_, err := s.db.Exec(`
		INSERT INTO events (event_id, title, subtitle, summary, sport, league_name,
			league_abbr, network, network_short, language, packages, event_type,
			is_reair, is_studio, airing_id, simulcast_airing_id, image, start_utc, stop_utc)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(event_id) DO UPDATE SET
			title=excluded.title, subtitle=excluded.subtitle, summary=excluded.summary,
			sport=excluded.sport, league_name=excluded.league_name, league_abbr=excluded.league_abbr,
			network=excluded.network, network_short=excluded.network_short, language=excluded.language,
			packages=excluded.packages, event_type=excluded.event_type, is_reair=excluded.is_reair,
			is_studio=excluded.is_studio, airing_id=excluded.airing_id,
			simulcast_airing_id=excluded.simulcast_airing_id, image=excluded.image,
			start_utc=excluded.start_utc, stop_utc=excluded.stop_utc
	`,
		e.EventID, e.Title, e.Subtitle, e.Summary, e.Sport, e.LeagueName,
		e.LeagueAbbr, e.Network, e.NetworkShort, e.Language, joinPackages(e.Packages), string(e.EventType),
		boolInt(e.IsReair), boolInt(e.IsStudio), e.AiringID, e.SimulcastAiringID, e.Image,
		epoch(e.StartUTC), epoch(e.StopUTC),
	)
	if err != nil {
		return fmt.Errorf("store: upsert event %s: %w", e.EventID, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertFeed(f model.Feed) error {
	_, err := s.db.Exec(`
		INSERT INTO feeds (feed_id, event_id, url, is_primary)
		VALUES (?,?,?,?)
		ON CONFLICT(feed_id, event_id) DO UPDATE SET
			url=excluded.url, is_primary=excluded.is_primary
	`, f.FeedID, f.EventID, f.URL, boolInt(f.IsPrimary))
	if err != nil {
		return fmt.Errorf("store: upsert feed %s/%s: %w", f.EventID, f.FeedID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteEventsBefore(t time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM events WHERE stop_utc < ?`, epoch(t))
	if err != nil {
		return 0, fmt.Errorf("store: delete events before %s: %w", t, err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) ListEventsInWindow(from, to time.Time) ([]model.Event, error) {
	rows, err := s.db.Query(`
		SELECT event_id, title, subtitle, summary, sport, league_name, league_abbr,
			network, network_short, language, packages, event_type, is_reair, is_studio,
			airing_id, simulcast_airing_id, image, start_utc, stop_utc
		FROM events
		WHERE start_utc < ? AND stop_utc > ?
		ORDER BY start_utc ASC, event_id ASC
	`, epoch(to), epoch(from))
	if err != nil {
		return nil, fmt.Errorf("store: list events in window: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		var pkgs, etype string
		var isReair, isStudio int
		var startSec, stopSec int64
		if err := rows.Scan(&e.EventID, &e.Title, &e.Subtitle, &e.Summary, &e.Sport,
			&e.LeagueName, &e.LeagueAbbr, &e.Network, &e.NetworkShort, &e.Language,
			&pkgs, &etype, &isReair, &isStudio, &e.AiringID, &e.SimulcastAiringID,
			&e.Image, &startSec, &stopSec); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		e.Packages = splitPackages(pkgs)
		e.EventType = model.EventType(etype)
		e.IsReair = isReair != 0
		e.IsStudio = isStudio != 0
		e.StartUTC = fromEpoch(startSec)
		e.StopUTC = fromEpoch(stopSec)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListFeedsByEvent(eventID string) ([]model.Feed, error) {
	rows, err := s.db.Query(`SELECT feed_id, event_id, url, is_primary FROM feeds WHERE event_id = ? ORDER BY feed_id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("store: list feeds for %s: %w", eventID, err)
	}
	defer rows.Close()

	var out []model.Feed
	for rows.Next() {
		var f model.Feed
		var isPrimary int
		if err := rows.Scan(&f.FeedID, &f.EventID, &f.URL, &isPrimary); err != nil {
			return nil, fmt.Errorf("store: scan feed: %w", err)
		}
		f.IsPrimary = isPrimary != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListChannels() ([]model.Channel, error) {
	rows, err := s.db.Query(`SELECT channel_id, chno, name, group_name, active FROM channel ORDER BY chno ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list channels: %w", err)
	}
	defer rows.Close()

	var out []model.Channel
	for rows.Next() {
		var c model.Channel
		var active int
		if err := rows.Scan(&c.ChannelID, &c.Chno, &c.Name, &c.GroupName, &active); err != nil {
			return nil, fmt.Errorf("store: scan channel: %w", err)
		}
		c.Active = active != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// EnsureChannels provisions channels 1..count if not already present,
// leaving any existing rows (and any rows beyond count) untouched — lanes
// are "provisioned once ... normally stable" (§3).
func (s *SQLiteStore) EnsureChannels(count int) error {
	existing, err := s.ListChannels()
	if err != nil {
		return err
	}
	have := make(map[int]bool, len(existing))
	for _, c := range existing {
		have[c.Chno] = true
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: ensure channels: %w", err)
	}
	for n := 1; n <= count; n++ {
		if have[n] {
			continue
		}
		channelID := fmt.Sprintf("eplus%02d", n)
		if _, err := tx.Exec(`INSERT INTO channel (channel_id, chno, name, group_name, active) VALUES (?,?,?,?,1)`,
			channelID, n, fmt.Sprintf("ESPN+ %d", n), "Sports"); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: insert channel %s: %w", channelID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadStickyMap() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT event_id, channel_id FROM event_lane`)
	if err != nil {
		return nil, fmt.Errorf("store: load sticky map: %w", err)
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var eventID, channelID string
		if err := rows.Scan(&eventID, &channelID); err != nil {
			return nil, fmt.Errorf("store: scan sticky map row: %w", err)
		}
		m[eventID] = channelID
	}
	return m, rows.Err()
}

func (s *SQLiteStore) ClearStickyMap() error {
	if _, err := s.db.Exec(`DELETE FROM event_lane`); err != nil {
		return fmt.Errorf("store: clear sticky map: %w", err)
	}
	return nil
}

func (s *SQLiteStore) WriteStickyMap(m map[string]model.EventLane) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: write sticky map: %w", err)
	}
	for eventID, lane := range m {
		if _, err := tx.Exec(`
			INSERT INTO event_lane (event_id, channel_id, pinned_at_utc, last_seen_utc)
			VALUES (?,?,?,?)
			ON CONFLICT(event_id) DO UPDATE SET
				channel_id=excluded.channel_id, last_seen_utc=excluded.last_seen_utc
		`, eventID, lane.ChannelID, epoch(lane.PinnedAtUTC), epoch(lane.LastSeenUTC)); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: upsert sticky map entry %s: %w", eventID, err)
		}
	}
	return tx.Commit()
}

// BeginPlan opens the single transaction a build runs inside, via a real
// *sql.Tx started with BEGIN IMMEDIATE so the write lock is acquired up
// front and concurrent builds serialize (§5), without gating resolver
// reads behind it: WAL mode lets readers proceed against their own
// connections while this one transaction holds the write lock.
func (s *SQLiteStore) BeginPlan(validFrom, validTo time.Time, sourceVersion, note string) (int64, error) {
	s.txMu.Lock()
	// modernc.org/sqlite maps sql.LevelSerializable to BEGIN IMMEDIATE, so
	// the write lock is acquired here rather than deferred to the first
	// write statement.
	tx, err := s.db.BeginTx(context.Background(), &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		s.txMu.Unlock()
		return 0, fmt.Errorf("store: begin plan: acquire write lock: %w", err)
	}
	res, err := tx.Exec(`
		INSERT INTO plan_run (generated_at_utc, valid_from_utc, valid_to_utc, source_version, note, checksum, committed)
		VALUES (?,?,?,?,?,'',0)
	`, epoch(time.Now()), epoch(validFrom), epoch(validTo), sourceVersion, note)
	if err != nil {
		tx.Rollback()
		s.txMu.Unlock()
		return 0, fmt.Errorf("store: begin plan: insert plan_run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		s.txMu.Unlock()
		return 0, fmt.Errorf("store: begin plan: last insert id: %w", err)
	}
	s.tx = tx
	return id, nil
}

func (s *SQLiteStore) WriteSlot(planID int64, slot model.PlanSlot) error {
	var eventID, feedID, reason interface{}
	if slot.EventID != "" {
		eventID = slot.EventID
	}
	if slot.PreferredFeedID != "" {
		feedID = slot.PreferredFeedID
	}
	if slot.PlaceholderReason != "" {
		reason = string(slot.PlaceholderReason)
	}
	if s.tx == nil {
		return fmt.Errorf("store: write slot (plan=%d lane=%s): no plan transaction in progress", planID, slot.ChannelID)
	}
	_, err := s.tx.Exec(`
		INSERT INTO plan_slot (plan_id, channel_id, start_utc, end_utc, kind, event_id, preferred_feed_id, placeholder_reason)
		VALUES (?,?,?,?,?,?,?,?)
	`, planID, slot.ChannelID, epoch(slot.StartUTC), epoch(slot.EndUTC), string(slot.Kind), eventID, feedID, reason)
	if err != nil {
		return fmt.Errorf("store: write slot (plan=%d lane=%s start=%s): %w", planID, slot.ChannelID, slot.StartUTC, err)
	}
	return nil
}

func (s *SQLiteStore) CommitPlan(planID int64, checksum string) error {
	if s.tx == nil {
		return fmt.Errorf("store: commit plan %d: no plan transaction in progress", planID)
	}
	defer s.endPlanTx()
	if _, err := s.tx.Exec(`UPDATE plan_run SET checksum = ?, committed = 1 WHERE plan_id = ?`, checksum, planID); err != nil {
		s.tx.Rollback()
		return fmt.Errorf("store: commit plan %d: %w", planID, err)
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("store: commit plan %d: finalize: %w", planID, err)
	}
	return nil
}

func (s *SQLiteStore) AbortPlan(planID int64) error {
	if s.tx == nil {
		return nil
	}
	defer s.endPlanTx()
	err := s.tx.Rollback()
	return err
}

// endPlanTx clears the in-flight plan transaction and releases txMu.
// CommitPlan/AbortPlan always call this exactly once regardless of
// outcome, so a failed commit never leaves the store wedged against the
// next BeginPlan.
func (s *SQLiteStore) endPlanTx() {
	s.tx = nil
	s.txMu.Unlock()
}

func (s *SQLiteStore) LatestPlanID() (int64, error) {
	var id sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(plan_id) FROM plan_run WHERE committed = 1`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: latest plan id: %w", err)
	}
	if !id.Valid {
		return 0, ErrNoActivePlan{}
	}
	return id.Int64, nil
}

func (s *SQLiteStore) LatestPlan() (model.PlanRun, error) {
	id, err := s.LatestPlanID()
	if err != nil {
		return model.PlanRun{}, err
	}
	var p model.PlanRun
	var gen, from, to int64
	err = s.db.QueryRow(`
		SELECT plan_id, generated_at_utc, valid_from_utc, valid_to_utc, source_version, note, checksum
		FROM plan_run WHERE plan_id = ?
	`, id).Scan(&p.PlanID, &gen, &from, &to, &p.SourceVersion, &p.Note, &p.Checksum)
	if err != nil {
		return model.PlanRun{}, fmt.Errorf("store: latest plan: %w", err)
	}
	p.GeneratedAtUTC = fromEpoch(gen)
	p.ValidFromUTC = fromEpoch(from)
	p.ValidToUTC = fromEpoch(to)
	return p, nil
}

func (s *SQLiteStore) FindSlot(lane string, at time.Time) (model.PlanSlot, bool, error) {
	planID, err := s.LatestPlanID()
	if err != nil {
		return model.PlanSlot{}, false, err
	}
	row := s.db.QueryRow(`
		SELECT channel_id, start_utc, end_utc, kind, COALESCE(event_id,''), COALESCE(preferred_feed_id,''), COALESCE(placeholder_reason,'')
		FROM plan_slot
		WHERE plan_id = ? AND channel_id = ? AND start_utc <= ? AND end_utc > ?
		ORDER BY start_utc DESC
		LIMIT 1
	`, planID, lane, epoch(at), epoch(at))
	var slot model.PlanSlot
	var startSec, endSec int64
	var kind, reason string
	if err := row.Scan(&slot.ChannelID, &startSec, &endSec, &kind, &slot.EventID, &slot.PreferredFeedID, &reason); err != nil {
		if err == sql.ErrNoRows {
			return model.PlanSlot{}, false, nil
		}
		return model.PlanSlot{}, false, fmt.Errorf("store: find slot lane=%s at=%s: %w", lane, at, err)
	}
	slot.StartUTC = fromEpoch(startSec)
	slot.EndUTC = fromEpoch(endSec)
	slot.Kind = model.SlotKind(kind)
	slot.PlaceholderReason = model.PlaceholderReason(reason)
	return slot, true, nil
}

func (s *SQLiteStore) ListSlots(planID int64, lane string) ([]model.PlanSlot, error) {
	rows, err := s.db.Query(`
		SELECT channel_id, start_utc, end_utc, kind, COALESCE(event_id,''), COALESCE(preferred_feed_id,''), COALESCE(placeholder_reason,'')
		FROM plan_slot WHERE plan_id = ? AND channel_id = ? ORDER BY start_utc ASC
	`, planID, lane)
	if err != nil {
		return nil, fmt.Errorf("store: list slots plan=%d lane=%s: %w", planID, lane, err)
	}
	defer rows.Close()

	var out []model.PlanSlot
	for rows.Next() {
		var slot model.PlanSlot
		var startSec, endSec int64
		var kind, reason string
		if err := rows.Scan(&slot.ChannelID, &startSec, &endSec, &kind, &slot.EventID, &slot.PreferredFeedID, &reason); err != nil {
			return nil, fmt.Errorf("store: scan slot: %w", err)
		}
		slot.StartUTC = fromEpoch(startSec)
		slot.EndUTC = fromEpoch(endSec)
		slot.Kind = model.SlotKind(kind)
		slot.PlaceholderReason = model.PlaceholderReason(reason)
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartUTC.Before(out[j].StartUTC) })
	return out, rows.Err()
}

func (s *SQLiteStore) WriteFilterAudit(audits []model.FilterAudit) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: write filter audit: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM events_filterable`); err != nil {
		tx.Rollback()
		return fmt.Errorf("store: write filter audit: clear: %w", err)
	}
	for _, a := range audits {
		if _, err := tx.Exec(`INSERT INTO events_filterable (event_id, is_allowed, reasons) VALUES (?,?,?)`,
			a.EventID, boolInt(a.IsAllowed), strings.Join(a.Reasons, ";")); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: write filter audit %s: %w", a.EventID, err)
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
