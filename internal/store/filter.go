package store

import (
	"strings"
	"time"
)

// Filter narrows list, count, and export queries. Zero values mean "no
// constraint". End is exclusive, so a day filter passes the start of the
// next day.
type Filter struct {
	DeviceType string
	MinScore   *float64
	Start      *time.Time
	End        *time.Time
}

func (f Filter) whereClause() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.DeviceType != "" {
		conds = append(conds, "device_type = ?")
		args = append(args, f.DeviceType)
	}
	if f.MinScore != nil {
		conds = append(conds, "authenticity_score >= ?")
		args = append(args, *f.MinScore)
	}
	if f.Start != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, fmtTime(*f.Start))
	}
	if f.End != nil {
		conds = append(conds, "timestamp < ?")
		args = append(args, fmtTime(*f.End))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
