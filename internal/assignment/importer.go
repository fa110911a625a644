// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package assignment

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
	"golang.org/x/text/cases"
	"judgeassign.dev/judgeassign/internal/directory"
	"judgeassign.dev/judgeassign/pkg/model"
)

// DefaultImportMaxBytes bounds the size of an imported file.
const DefaultImportMaxBytes = 1 << 20

var importHeader = []string{"Judge", "Team"}

// ImportRow is one data row of an import file. Row is the 1-based line
// number, the header being line 1.
type ImportRow struct {
	Row   int
	Judge string
	Team  string
}

// ParseImport reads an import file: a header row followed by rows of
// (judge identifier, team identifier). Rows that cannot be used are returned
// as InvalidRow; a file without a header is rejected as a whole.
func ParseImport(data []byte) ([]ImportRow, []model.SkippedRow, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, newError(model.InvalidArgument, "import file is empty")
	}
	if err != nil {
		return nil, nil, wrapError(err, model.InvalidArgument, "cannot read import header")
	}
	if len(header) != len(importHeader) {
		return nil, nil, newError(model.InvalidArgument, "import header must have %d columns, found %d", len(importHeader), len(header))
	}

	var rows []ImportRow
	var skipped []model.SkippedRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && perr.Line > perr.StartLine {
				// The broken record swallowed the lines after it, e.g. an
				// unterminated quote, so the remaining rows are unknown.
				return nil, nil, wrapError(err, model.InvalidArgument, "malformed record spans lines %d to %d", perr.StartLine, perr.Line)
			}
			if perr != nil {
				skipped = append(skipped, model.SkippedRow{
					Row:     perr.StartLine,
					Reason:  model.InvalidRow,
					Message: perr.Err.Error(),
				})
				continue
			}
			return nil, nil, wrapError(err, model.InvalidArgument, "cannot read import file")
		}

		line, _ := r.FieldPos(0)
		if len(record) != len(importHeader) {
			skipped = append(skipped, model.SkippedRow{
				Row:     line,
				Judge:   strings.Join(record, ","),
				Reason:  model.InvalidRow,
				Message: fmt.Sprintf("expected %d columns, found %d", len(importHeader), len(record)),
			})
			continue
		}

		row := ImportRow{Row: line, Judge: strings.TrimSpace(record[0]), Team: strings.TrimSpace(record[1])}
		if row.Judge == "" || row.Team == "" {
			skipped = append(skipped, model.SkippedRow{
				Row:     line,
				Judge:   row.Judge,
				Team:    row.Team,
				Reason:  model.InvalidRow,
				Message: "judge and team identifiers are required",
			})
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

// Resolver maps human readable identifiers to directory ids. Matching ignores
// case and repeated whitespace.
type Resolver struct {
	fold   cases.Caser
	judges map[string][]string
	teams  map[string][]string
}

// NewResolver indexes judges by email, display name and "given family" name,
// and teams by name. Ids are accepted as a last resort for both.
func NewResolver(snapshot *directory.Snapshot) *Resolver {
	r := &Resolver{
		fold:   cases.Fold(),
		judges: make(map[string][]string),
		teams:  make(map[string][]string),
	}
	for _, j := range snapshot.Judges {
		keys := []string{j.Email, j.DisplayName, j.GivenName + " " + j.FamilyName}
		seen := map[string]bool{}
		for _, k := range keys {
			k = r.normalize(k)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			r.judges[k] = append(r.judges[k], j.ID)
		}
	}
	for _, t := range snapshot.Teams {
		k := r.normalize(t.Name)
		if k != "" {
			r.teams[k] = append(r.teams[k], t.ID)
		}
	}
	for _, j := range snapshot.Judges {
		k := r.normalize(j.ID)
		if _, ok := r.judges[k]; !ok {
			r.judges[k] = []string{j.ID}
		}
	}
	for _, t := range snapshot.Teams {
		k := r.normalize(t.ID)
		if _, ok := r.teams[k]; !ok {
			r.teams[k] = []string{t.ID}
		}
	}
	return r
}

func (r *Resolver) normalize(s string) string {
	return r.fold.String(strings.Join(strings.Fields(s), " "))
}

// Pair resolves a (judge, team) identifier pair.
func (r *Resolver) Pair(judge, team string) (model.Pair, *Error) {
	judgeID, err := resolve(r.judges, r.normalize(judge), "judge", judge)
	if err != nil {
		return model.Pair{}, err
	}
	teamID, err := resolve(r.teams, r.normalize(team), "team", team)
	if err != nil {
		return model.Pair{}, err
	}
	return model.Pair{JudgeID: judgeID, TeamID: teamID}, nil
}

func resolve(index map[string][]string, key, what, identifier string) (string, *Error) {
	ids := index[key]
	switch len(ids) {
	case 0:
		return "", newError(model.UnknownEntity, "no %s matches %q", what, identifier)
	case 1:
		return ids[0], nil
	}
	return "", newError(model.UnknownEntity, "%q matches %d %ss", identifier, len(ids), what)
}

// Importer turns import files into committed assignments.
type Importer struct {
	store    *Store
	maxBytes int
}

// NewImporter creates an Importer committing through store. Files larger than
// maxBytes are rejected; a non-positive value selects DefaultImportMaxBytes.
func NewImporter(store *Store, maxBytes int) *Importer {
	if maxBytes <= 0 {
		maxBytes = DefaultImportMaxBytes
	}
	return &Importer{store: store, maxBytes: maxBytes}
}

// ImportBatch parses and resolves the file outside the exclusive section, then
// commits every resolved row in one batch. Rows are reported as skipped when
// they are malformed, unresolved, or refused by the store.
func (im *Importer) ImportBatch(ctx context.Context, contextID string, data []byte) (*model.ImportReport, error) {
	ctx, span := trace.StartSpan(ctx, "assignment.Importer.ImportBatch")
	defer span.End()

	if len(data) > im.maxBytes {
		return nil, newError(model.InvalidArgument, "import file is %d bytes, the limit is %d", len(data), im.maxBytes)
	}
	rows, skipped, err := ParseImport(data)
	if err != nil {
		return nil, err
	}

	_, snapshot, err := im.store.read(ctx, contextID)
	if err != nil {
		return nil, err
	}
	resolver := NewResolver(snapshot)

	var pairs []model.Pair
	var resolvedRows []ImportRow
	for _, row := range rows {
		p, err := resolver.Pair(row.Judge, row.Team)
		if err != nil {
			skipped = append(skipped, model.SkippedRow{
				Row:     row.Row,
				Judge:   row.Judge,
				Team:    row.Team,
				Reason:  err.Kind,
				Message: err.Message,
			})
			continue
		}
		pairs = append(pairs, p)
		resolvedRows = append(resolvedRows, row)
	}

	report := &model.ImportReport{
		BatchID:       xid.New().String(),
		TotalRows:     len(rows) + countInvalid(skipped),
		ResolvedCount: len(pairs),
		Applied:       []model.Pair{},
	}

	if len(pairs) > 0 {
		outcomes, err := im.store.bulkCreate(ctx, contextID, pairs)
		if err != nil {
			return nil, err
		}
		for i, o := range outcomes {
			if o == nil {
				report.Applied = append(report.Applied, pairs[i])
				continue
			}
			skipped = append(skipped, model.SkippedRow{
				Row:     resolvedRows[i].Row,
				Judge:   resolvedRows[i].Judge,
				Team:    resolvedRows[i].Team,
				Reason:  o.Reason,
				Message: o.Message,
			})
		}
	}

	sort.SliceStable(skipped, func(i, j int) bool { return skipped[i].Row < skipped[j].Row })
	report.Skipped = skipped
	if report.Skipped == nil {
		report.Skipped = []model.SkippedRow{}
	}

	logger.WithFields(logrus.Fields{
		"context":  contextID,
		"batch":    report.BatchID,
		"rows":     report.TotalRows,
		"resolved": report.ResolvedCount,
		"applied":  len(report.Applied),
		"skipped":  len(report.Skipped),
	}).Info("import batch committed")
	return report, nil
}

func countInvalid(skipped []model.SkippedRow) int {
	n := 0
	for _, s := range skipped {
		if s.Reason == model.InvalidRow {
			n++
		}
	}
	return n
}

// Template returns an import file skeleton. Example rows use live directory
// entries when the context has both judges and teams.
func Template(snapshot *directory.Snapshot) ([]byte, error) {
	records := [][]string{importHeader}
	if snapshot == nil || len(snapshot.Judges) == 0 || len(snapshot.Teams) == 0 {
		records = append(records,
			[]string{"judge@example.com", "Example Team"},
			[]string{"Jane Doe", "Another Team"},
		)
	} else {
		n := len(snapshot.Judges)
		if len(snapshot.Teams) > n {
			n = len(snapshot.Teams)
		}
		if n > 3 {
			n = 3
		}
		for i := 0; i < n; i++ {
			j := snapshot.Judges[i%len(snapshot.Judges)]
			t := snapshot.Teams[i%len(snapshot.Teams)]
			judge := j.Email
			if judge == "" {
				judge = j.DisplayName
			}
			records = append(records, []string{judge, t.Name})
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return nil, errors.Wrap(err, "failed to write import template row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to flush import template")
	}
	return buf.Bytes(), nil
}
