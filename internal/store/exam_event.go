package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var examEventColumns = []string{
	"id", "sequence", "timestamp", "session_id", "user_id", "task_id",
	"part_index", "question_index", "action", "detail",
}

func (r *eventRepo) AppendExamEvent(ctx context.Context, data ExamEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := builder().Insert(tableExamEvents).
		Columns(examEventColumns[1:]...).
		Values(
			seqNum, time.Now().UTC(), data.SessionID, data.UserID, data.TaskID,
			data.PartIndex, data.QuestionIndex, data.Action, data.Detail,
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save exam event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryExamEvents(ctx context.Context, userID int64, opts QueryOpts) ([]ExamEventRecord, error) {
	sel := builder().Select(examEventColumns...).From(builder().Table(tableExamEvents))
	if userID != 0 {
		sel.Where(entsql.EQ("user_id", userID))
	}
	applyQueryOpts(sel, opts)

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exam events: %w", err)
	}
	defer rows.Close()

	var out []ExamEventRecord
	for rows.Next() {
		var rec ExamEventRecord
		if err := rows.Scan(
			&rec.ID, &rec.Sequence, &rec.Timestamp, &rec.SessionID, &rec.UserID, &rec.TaskID,
			&rec.PartIndex, &rec.QuestionIndex, &rec.Action, &rec.Detail,
		); err != nil {
			return nil, fmt.Errorf("scan exam event: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
