package core_test

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/soma/core"
)

func TestPagination_Window(t *testing.T) {
	tests := []struct {
		name      string
		page      core.Pagination
		n         int
		wantStart int
		wantEnd   int
	}{
		{name: "no limit", page: core.Pagination{Page: 3}, n: 5, wantStart: 0, wantEnd: 5},
		{name: "first page", page: core.Pagination{Page: 1, Limit: 2}, n: 5, wantStart: 0, wantEnd: 2},
		{name: "zero page", page: core.Pagination{Limit: 2}, n: 5, wantStart: 0, wantEnd: 2},
		{name: "last page", page: core.Pagination{Page: 3, Limit: 2}, n: 5, wantStart: 4, wantEnd: 5},
		{name: "past end", page: core.Pagination{Page: 4, Limit: 2}, n: 5, wantStart: 5, wantEnd: 5},
		{name: "huge page", page: core.Pagination{Page: math.MaxInt, Limit: 2}, n: 5, wantStart: 5, wantEnd: 5},
		{name: "huge limit", page: core.Pagination{Page: 1, Limit: math.MaxInt}, n: 5, wantStart: 0, wantEnd: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.page.Window(tt.n)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestPagination_Offset(t *testing.T) {
	assert.Equal(t, 0, core.Pagination{Page: 5}.Offset())
	assert.Equal(t, 4, core.Pagination{Page: 3, Limit: 2}.Offset())
	assert.Equal(t, math.MaxInt, core.Pagination{Page: math.MaxInt, Limit: 2}.Offset())
}

func TestPagination_Validate(t *testing.T) {
	tests := []struct {
		name    string
		page    core.Pagination
		wantErr []core.FieldError
	}{
		{name: "empty", page: core.Pagination{}},
		{name: "max limit", page: core.Pagination{Page: 2, Limit: core.MaxPageLimit}},
		{name: "negative", page: core.Pagination{Page: -1, Limit: -1}, wantErr: []core.FieldError{
			{Field: "page", Error: "must be a positive integer"},
			{Field: "limit", Error: "must be a positive integer"},
		}},
		{name: "limit too large", page: core.Pagination{Limit: core.MaxPageLimit + 1}, wantErr: []core.FieldError{
			{Field: "limit", Error: "must be at most 1000"},
		}},
		{name: "page out of range", page: core.Pagination{Page: math.MaxInt, Limit: 2}, wantErr: []core.FieldError{
			{Field: "page", Error: "is out of range"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.page.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			verr, ok := errors.Cause(err).(*core.ValidationError)
			if assert.True(t, ok) {
				assert.Equal(t, tt.wantErr, verr.Fields)
			}
		})
	}
}
