package profile_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/morph"
	"github.com/zoobzio/morph/profile"
)

type User struct {
	ID     int
	Name   string
	Email  string
	Salary int
	Tags   []string
}

type UserView struct {
	ID          int
	DisplayName string
	Email       string
	Salary      int
	Tags        []string
}

const userProfile = `
version: "1"
types:
  - name: UserView
    fields:
      - name: DisplayName
        alias: Name
      - name: Email
        convert: mask.email
      - name: Salary
        ignore: {except: [hr]}
`

func TestParse(t *testing.T) {
	f, err := profile.Parse([]byte(userProfile))
	require.NoError(t, err)
	require.Len(t, f.Types, 1, spew.Sdump(f))

	ut := f.Types[0]
	assert.Equal(t, "UserView", ut.Name)
	require.Len(t, ut.Fields, 3)
	assert.Equal(t, "Name", ut.Fields[0].Alias)
	assert.Equal(t, morph.MaskEmail, ut.Fields[1].Convert)
	require.NotNil(t, ut.Fields[2].Ignore)
	assert.Equal(t, []string{"hr"}, ut.Fields[2].Ignore.Except)
}

func TestParse_Errors(t *testing.T) {
	_, err := profile.Parse([]byte("version: \"2\"\n"))
	assert.ErrorIs(t, err, profile.ErrVersion)

	_, err = profile.Parse([]byte("types:\n  - name: X\n    colour: red\n"))
	assert.Error(t, err, "unknown keys are rejected")

	f, err := profile.Parse([]byte("types: []\n"))
	require.NoError(t, err)
	assert.Equal(t, profile.Version, f.Version)
}

func TestIgnore_Rule(t *testing.T) {
	no := false
	tests := []struct {
		name   string
		ignore profile.Ignore
		want   morph.IgnoreRule
	}{
		{"bare", profile.Ignore{}, morph.IgnoreRule{Ignored: true}},
		{"except", profile.Ignore{Except: []string{"a"}}, morph.IgnoreRule{Ignored: true, Except: []morph.Group{"a"}}},
		{"when", profile.Ignore{When: []string{"b"}}, morph.IgnoreRule{Except: []morph.Group{"b"}}},
		{"explicit default", profile.Ignore{Default: &no, Except: []string{"a"}}, morph.IgnoreRule{Except: []morph.Group{"a"}}},
		{"policy only", profile.Ignore{Policy: "empty"}, morph.IgnoreRule{Policy: morph.PolicyEmpty}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ignore.Rule()
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}

	_, err := (&profile.Ignore{Policy: "sometimes"}).Rule()
	assert.ErrorIs(t, err, morph.ErrInvalidTag)
}

func TestApply(t *testing.T) {
	e, err := morph.New()
	require.NoError(t, err)

	f, err := profile.Parse([]byte(userProfile))
	require.NoError(t, err)
	require.NoError(t, f.Apply(e, profile.TypeNames(UserView{})))

	m, err := morph.For[User, UserView](e)
	require.NoError(t, err)

	src := &User{ID: 1, Name: "Ann", Email: "ann@example.com", Salary: 10}
	view, err := m.Map(src)
	require.NoError(t, err)
	assert.Equal(t, "Ann", view.DisplayName)
	assert.Equal(t, "a***@example.com", view.Email)
	assert.Zero(t, view.Salary)

	view, err = m.Map(src, morph.Groups("hr"))
	require.NoError(t, err)
	assert.Equal(t, 10, view.Salary)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	e, err := morph.New()
	require.NoError(t, err)

	f := &profile.File{Types: []profile.Type{
		{Name: "UserVeiw"},
		{Name: "UserView", Fields: []profile.Field{
			{Name: "DisplayNme"},
			{Name: "Email", Convert: "mask.nope"},
			{Name: "Tags", Collection: "ring"},
			{Name: "Salary", Ignore: &profile.Ignore{Policy: "sometimes"}},
		}},
	}}

	err = f.Apply(e, profile.TypeNames(&UserView{}))
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr), spew.Sdump(err))
	assert.Len(t, merr.Errors, 5)

	assert.ErrorIs(t, merr.Errors[0], profile.ErrUnknownType)
	assert.Contains(t, merr.Errors[0].Error(), `did you mean "UserView"`)
	assert.ErrorIs(t, merr.Errors[1], profile.ErrUnknownField)
	assert.Contains(t, merr.Errors[1].Error(), `did you mean "DisplayName"`)
	assert.ErrorIs(t, merr.Errors[2], morph.ErrUnknownConverter)
	assert.ErrorIs(t, merr.Errors[3], morph.ErrUnknownCollection)
	assert.ErrorIs(t, merr.Errors[4], morph.ErrInvalidTag)

	assert.Empty(t, e.Describe(reflect.TypeFor[UserView]()).Fields(), "invalid profile applied partially")
}

func TestValidate_NotRecord(t *testing.T) {
	e, err := morph.New()
	require.NoError(t, err)

	f := &profile.File{Types: []profile.Type{{Name: "Count"}}}
	err = f.Validate(e, map[string]reflect.Type{"Count": reflect.TypeFor[int]()})
	assert.ErrorIs(t, err, morph.ErrNotRecord)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views.yaml")
	require.NoError(t, os.WriteFile(path, []byte(userProfile), 0o600))

	f, err := profile.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Types, 1)

	data, err := profile.Marshal(f)
	require.NoError(t, err)
	again, err := profile.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, f, again)

	_, err = profile.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
