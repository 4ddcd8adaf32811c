package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelection_CombinesClauses(t *testing.T) {
	sel := NewSelection("locale = ?", "en").Where("").Where("location_uuid = ?", "loc-1")
	assert.Equal(t, "(locale = ?) AND (location_uuid = ?)", sel.SQL())
	assert.Equal(t, []any{"en", "loc-1"}, sel.Args())

	var empty *Selection
	assert.Equal(t, "", empty.SQL())
	assert.Nil(t, empty.Args())
}

func TestSelectSQL(t *testing.T) {
	sel := NewSelection("parent_uuid = ?", "root")
	q, args, err := Postgres.SelectSQL(Locations, []string{"location_uuid"}, sel, "location_uuid DESC")
	require.NoError(t, err)
	assert.Equal(t, "SELECT location_uuid FROM locations WHERE (parent_uuid = $1) ORDER BY location_uuid DESC", q)
	assert.Equal(t, []any{"root"}, args)

	q, args, err = SQLite.SelectSQL(Locations, nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM locations", q)
	assert.Empty(t, args)
}

func TestSelectSQL_RankPrecedesOrdering(t *testing.T) {
	sel := NewSelection("gender = ?", "F").RankBy("CASE location_uuid WHEN 'a' THEN 0 ELSE 1 END")
	q, args, err := Postgres.SelectSQL(Patients, []string{"uuid"}, sel, "uuid")
	require.NoError(t, err)
	assert.Equal(t, "SELECT uuid FROM patients WHERE (gender = $1) ORDER BY CASE location_uuid WHEN 'a' THEN 0 ELSE 1 END, uuid", q)
	assert.Equal(t, []any{"F"}, args)

	q, _, err = SQLite.SelectSQL(Patients, nil, (&Selection{}).RankBy("location_uuid"), "")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM patients ORDER BY location_uuid", q)
}

func TestSelectSQL_RejectsUnknownProjectionAndBadOrdering(t *testing.T) {
	_, _, err := SQLite.SelectSQL(Locations, []string{"password"}, nil, "")
	assert.True(t, errors.Is(err, ErrUnknownColumn))

	_, _, err = SQLite.SelectSQL(Locations, nil, nil, "location_uuid; DROP TABLE locations")
	assert.True(t, errors.Is(err, ErrInvalidOrdering))
}

func TestUpdateAndDeleteSQL(t *testing.T) {
	sel := NewSelection("location_uuid = ?", "loc-1")
	q, args, err := Postgres.UpdateSQL(LocationNames, Values{"name": "Tent A", "locale": "en"}, sel)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE location_names SET locale = $1, name = $2 WHERE (location_uuid = $3)", q)
	assert.Equal(t, []any{"en", "Tent A", "loc-1"}, args)

	_, _, err = Postgres.UpdateSQL(LocationNames, Values{}, sel)
	assert.True(t, errors.Is(err, ErrEmptyValues))

	q, args = SQLite.DeleteSQL(LocationNames, sel)
	assert.Equal(t, "DELETE FROM location_names WHERE (location_uuid = ?)", q)
	assert.Equal(t, []any{"loc-1"}, args)
}

func TestValues(t *testing.T) {
	v := Values{"parent_uuid": "root", "location_uuid": "loc-1"}
	assert.Equal(t, []string{"location_uuid", "parent_uuid"}, v.Columns())
	assert.Equal(t, "location_uuid,parent_uuid", v.Signature())
	assert.Equal(t, "loc-1", v.KeyString(Locations))
	assert.Equal(t, []any{"loc-1", "root"}, v.Args(v.Columns()))

	_, err := Values{"bogus": 1}.ColumnsFor(Locations)
	assert.True(t, errors.Is(err, ErrUnknownColumn))

	clone := v.Clone()
	clone["parent_uuid"] = "other"
	assert.Equal(t, "root", v["parent_uuid"])
}
