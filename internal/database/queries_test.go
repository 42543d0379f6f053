package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"k8s.io/utils/ptr"
)

func TestRenderListFrameworksQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     ListFrameworksArgs
		wantSQL  string
		wantArgs int
	}{
		{
			name:    "no filter no order",
			args:    ListFrameworksArgs{},
			wantSQL: "SELECT " + frameworkColumns + " FROM frameworks",
		},
		{
			name:     "category filter",
			args:     ListFrameworksArgs{CategoryID: ptr.To[int64](3)},
			wantSQL:  "SELECT " + frameworkColumns + " FROM frameworks WHERE category_id = $1",
			wantArgs: 1,
		},
		{
			name:    "indexed order descending",
			args:    ListFrameworksArgs{OrderBy: "trending_score", Desc: true},
			wantSQL: "SELECT " + frameworkColumns + " FROM frameworks ORDER BY trending_score DESC NULLS LAST",
		},
		{
			name:    "indexed order ascending",
			args:    ListFrameworksArgs{OrderBy: "current_stars"},
			wantSQL: "SELECT " + frameworkColumns + " FROM frameworks ORDER BY current_stars ASC NULLS LAST",
		},
		{
			name:    "unknown order column is not interpolated",
			args:    ListFrameworksArgs{OrderBy: "name; DROP TABLE frameworks"},
			wantSQL: "SELECT " + frameworkColumns + " FROM frameworks",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, qargs := RenderListFrameworksQuery(tt.args)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Len(t, qargs, tt.wantArgs)
		})
	}
}

func TestDayStartUTC(t *testing.T) {
	noon := time.Date(2026, 8, 29, 12, 34, 56, 0, time.UTC)
	midnight := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, midnight.Unix(), dayStartUTC(noon.Unix()))
	assert.Equal(t, midnight.Unix(), dayStartUTC(midnight.Unix()))

	// A second before midnight belongs to the previous day.
	assert.Equal(t, midnight.AddDate(0, 0, -1).Unix(), dayStartUTC(midnight.Unix()-1))

	// Two timestamps on the same UTC day coalesce to one bucket even when
	// they straddle a local-time day boundary.
	early := time.Date(2026, 8, 29, 1, 0, 0, 0, time.UTC)
	late := time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, dayStartUTC(early.Unix()), dayStartUTC(late.Unix()))
}
