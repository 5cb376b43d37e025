package web

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/jhartz/gradefast/internal/grades"
)

// leafColumn is one per-leaf export column, in structure order.
type leafColumn struct {
	label string // "(points) qualified name"
	name  string // qualified name, matching PointEntry.Name
}

// leafColumns flattens the grade structure into the export columns.
// Every leaf appears, whether or not a given submission has it enabled.
func leafColumns(defs []grades.Def, ancestors []string) []leafColumn {
	var out []leafColumn
	for _, d := range defs {
		switch def := d.(type) {
		case *grades.ScoreDef:
			qualified := def.Name
			for i := len(ancestors) - 1; i >= 0; i-- {
				qualified = ancestors[i] + ": " + qualified
			}
			out = append(out, leafColumn{
				label: fmt.Sprintf("(%s) %s", grades.FormatScore(def.Points), qualified),
				name:  qualified,
			})
		case *grades.SectionDef:
			out = append(out, leafColumns(def.Children, append(ancestors, def.Name))...)
		}
	}
	return out
}

// handleGradesCSV streams the score spreadsheet: one row per submission,
// one trailing column per leaf grade item.
func (s *Server) handleGradesCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="grades.csv"`)

	columns := leafColumns(s.settings.GradeStructure, nil)
	cw := csv.NewWriter(w)

	header := []string{"Name", "Total Score", "Percentage", "Feedback", ""}
	for _, col := range columns {
		header = append(header, col.label)
	}
	if err := cw.Write(header); err != nil {
		log.Printf("grades.csv: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs.All() {
		earned, possible, points := sub.Grade.GetScore()

		byName := make(map[string]float64, len(points))
		for _, p := range points {
			byName[p.Name] = p.Earned
		}

		row := []string{
			sub.Name,
			grades.FormatScore(earned),
			grades.FormatScore(percentage(earned, possible)),
			sub.Grade.GetFeedback(),
			"",
		}
		for _, col := range columns {
			if e, ok := byName[col.name]; ok {
				row = append(row, grades.FormatScore(e))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			log.Printf("grades.csv: %v", err)
			return
		}
	}
	cw.Flush()
}

// handleGradesJSON exports one object per submission.
func (s *Server) handleGradesJSON(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var out []map[string]any
	for _, sub := range s.subs.All() {
		earned, possible, points := sub.Grade.GetScore()
		entry := map[string]any{
			"name":           sub.Name,
			"score":          grades.ScoreNumber(earned),
			"possible_score": grades.ScoreNumber(possible),
			"percentage":     percentage(earned, possible),
			"feedback":       sub.Grade.GetFeedback(),
		}
		for _, p := range points {
			entry[p.Name] = grades.ScoreNumber(p.Earned)
		}
		out = append(out, entry)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Printf("grades.json: %v", err)
	}
}

// percentage avoids dividing by a zero points-possible.
func percentage(earned, possible float64) float64 {
	if possible == 0 {
		return 0
	}
	return earned / possible * 100
}
