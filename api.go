// Package morph maps values between independently defined struct types.
//
// A Mapper copies fields from a source record into a target record by name,
// converting values structurally: scalars pass through (with pointer boxing
// and unboxing), slices and arrays are rebuilt element by element,
// collections are copied into a target of the declared or mirrored
// implementation, and nested records are mapped recursively into fresh
// instances.
//
// # Basic Usage
//
//	type User struct {
//	    ID       int
//	    Name     string
//	    Email    string
//	    Password string
//	}
//
//	type UserView struct {
//	    ID          int
//	    DisplayName string `morph.alias:"Name"`
//	    Email       string `morph.convert:"mask.email"`
//	    Password    string `morph.ignore:""`
//	}
//
//	e, _ := morph.New()
//	m, _ := morph.For[User, UserView](e)
//	view, err := m.Map(&user)
//
// # Tag Syntax
//
//	morph.alias:"Source"          read from a differently named source field
//	morph.convert:"name"          apply a registered converter
//	morph.collection:"name"       construct collection targets with a registered factory
//	morph.ignore:"<clauses>"      skip rules, see below
//
// morph.ignore clauses are separated by semicolons:
//
//	""                 always ignored
//	except=admin,ops   ignored unless group admin or ops is active
//	when=public        ignored only when group public is active
//	default=false      explicit decision without groups
//	policy=null        skip null source values (null, empty, none)
//	check=Method       func(source any) bool or func(source any, skip bool) bool on *Target
//
// Groups are activated per call with Groups(...) or per engine with WithGroups.
// Rules are evaluated in order: group rule, then null/empty policy (either can
// skip), then the custom predicate, which has the final word.
//
// # Explicit Specs
//
// Types that cannot carry tags are configured through Describe:
//
//	morph.Describe[UserView](e).
//	    Field("DisplayName").Alias("Name").
//	    Field("Password").Ignore(morph.Always("admin"))
//
// Spec settings take precedence over tags. The profile package loads specs
// from YAML.
//
// # Converters
//
// Built-in converters are registered on every engine:
//
//   - time.unixmilli, time.unix, time.rfc3339
//   - hash.sha256, hash.sha512, hash.bcrypt, hash.argon2
//   - mask.email, mask.card, mask.phone, mask.ssn, mask.name, mask.ip
//   - encrypt.aes, decrypt.aes (with WithKey)
//
// # Caching
//
// Accessors are generated lazily per type and field and cached. Cache entries
// are reachable only through a bounded hot set; entries that fall out of it
// are reclaimed by the garbage collector and rebuilt on next use. Mappings are
// registered once per type pair and live as long as their engine.
package morph
