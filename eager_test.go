package assoc

import (
	"testing"

	"github.com/google/uuid"
)

func TestEagerLoadHasMany(t *testing.T) {
	finder := &stubFinder{}
	reg := NewRegistry(WithFinder(finder))
	authors := reg.Register("Author")
	authors.HasMany("posts", Options{})
	posts := reg.Register("Post")

	finder.results = []*Record{
		posts.Hydrate(map[string]any{"id": 10, "author_id": 1}),
		posts.Hydrate(map[string]any{"id": 11, "author_id": 2}),
		posts.Hydrate(map[string]any{"id": 12, "author_id": 1}),
	}

	owners := []*Record{
		authors.Hydrate(map[string]any{"id": 1}),
		authors.Hydrate(map[string]any{"id": 2}),
		authors.Hydrate(map[string]any{"id": 3}),
	}

	if err := authors.Relationship("posts").EagerLoad(owners); err != nil {
		t.Fatal(err)
	}

	if finder.calls != 1 {
		t.Fatalf("eager load issued %d queries, want 1", finder.calls)
	}
	if got := finder.opts[0].Conditions.Expr; got != "posts.author_id IN (?,?,?)" {
		t.Errorf("condition = %q", got)
	}
	if len(owners[0].Many("posts")) != 2 {
		t.Errorf("owner 1 got %d posts, want 2", len(owners[0].Many("posts")))
	}
	if len(owners[1].Many("posts")) != 1 {
		t.Errorf("owner 2 got %d posts, want 1", len(owners[1].Many("posts")))
	}
	if got := owners[2].Many("posts"); got == nil || len(got) != 0 {
		t.Errorf("matchless owner should get an empty collection, got %v", got)
	}
	for _, o := range owners {
		if !o.Loaded("posts") {
			t.Error("relationship not marked loaded on every owner")
		}
	}
}

func TestEagerLoadEmptyOwners(t *testing.T) {
	finder := &stubFinder{}
	reg := NewRegistry(WithFinder(finder))
	authors := reg.Register("Author")
	authors.HasMany("posts", Options{})
	reg.Register("Post")

	if err := authors.Relationship("posts").EagerLoad(nil); err != nil {
		t.Fatal(err)
	}
	if finder.calls != 0 {
		t.Errorf("empty input issued %d queries, want 0", finder.calls)
	}
}

func TestEagerLoadAllNullKeys(t *testing.T) {
	finder := &stubFinder{}
	reg := NewRegistry(WithFinder(finder))
	posts := reg.Register("Post")
	posts.BelongsTo("author", Options{})
	reg.Register("Author")

	owners := []*Record{
		posts.Hydrate(map[string]any{"id": 1, "author_id": nil}),
		posts.Hydrate(map[string]any{"id": 2, "author_id": nil}),
	}

	if err := posts.Relationship("author").EagerLoad(owners); err != nil {
		t.Fatal(err)
	}
	if finder.calls != 0 {
		t.Errorf("all-null keys issued %d queries, want 0", finder.calls)
	}
	for _, o := range owners {
		if !o.Loaded("author") || o.One("author") != nil {
			t.Errorf("owner %v: expected nil attachment, loaded", o.Get("id"))
		}
	}
}

func TestEagerLoadDeduplicatesKeyValues(t *testing.T) {
	finder := &stubFinder{}
	reg := NewRegistry(WithFinder(finder))
	posts := reg.Register("Post")
	posts.BelongsTo("author", Options{})
	authors := reg.Register("Author")

	finder.results = []*Record{authors.Hydrate(map[string]any{"id": 7, "name": "ada"})}

	owners := []*Record{
		posts.Hydrate(map[string]any{"id": 1, "author_id": 7}),
		posts.Hydrate(map[string]any{"id": 2, "author_id": 7}),
		posts.Hydrate(map[string]any{"id": 3, "author_id": 7}),
	}

	if err := posts.Relationship("author").EagerLoad(owners); err != nil {
		t.Fatal(err)
	}

	// One distinct key value, one placeholder.
	if got := finder.opts[0].Conditions.Expr; got != "authors.id = ?" {
		t.Errorf("condition = %q", got)
	}
	if len(finder.opts[0].Conditions.Args) != 1 {
		t.Errorf("args = %v, want deduplicated single value", finder.opts[0].Conditions.Args)
	}
}

func TestEagerLoadSharedTargetIdentity(t *testing.T) {
	finder := &stubFinder{}
	reg := NewRegistry(WithFinder(finder))
	posts := reg.Register("Post")
	posts.BelongsTo("author", Options{})
	authors := reg.Register("Author")

	shared := authors.Hydrate(map[string]any{"id": 7, "name": "ada"})
	finder.results = []*Record{shared}

	owners := []*Record{
		posts.Hydrate(map[string]any{"id": 1, "author_id": 7}),
		posts.Hydrate(map[string]any{"id": 2, "author_id": 7}),
	}

	if err := posts.Relationship("author").EagerLoad(owners); err != nil {
		t.Fatal(err)
	}

	first := owners[0].One("author")
	second := owners[1].One("author")

	if first != shared {
		t.Error("first recipient should get the fetched record itself")
	}
	if second == shared {
		t.Error("later recipient should get an independent copy")
	}
	if second.Get("name") != "ada" {
		t.Errorf("copy lost attributes: %v", second.Get("name"))
	}

	// Value equality, identity distinctness: mutation through one owner must
	// not leak into the other.
	first.Set("name", "grace")
	if second.Get("name") != "ada" {
		t.Error("mutation leaked between owners")
	}
}

func TestEagerLoadThrough(t *testing.T) {
	finder := &stubFinder{}
	reg := NewRegistry(WithFinder(finder))

	students := reg.Register("Student")
	students.HasMany("enrollments", Options{})
	students.HasMany("courses", Options{Through: "enrollments"})
	enrollments := reg.Register("Enrollment")
	enrollments.BelongsTo("student", Options{})
	enrollments.BelongsTo("course", Options{})
	courses := reg.Register("Course")

	// Two owners, three intermediate rows, two distinct targets: the course
	// row shared by both students comes back once per matching intermediate,
	// carrying the joined-side key.
	finder.results = []*Record{
		courses.Hydrate(map[string]any{"id": 30, "name": "algebra", "_assoc_owner_key_0": 1}),
		courses.Hydrate(map[string]any{"id": 30, "name": "algebra", "_assoc_owner_key_0": 2}),
		courses.Hydrate(map[string]any{"id": 31, "name": "logic", "_assoc_owner_key_0": 1}),
	}

	owners := []*Record{
		students.Hydrate(map[string]any{"id": 1}),
		students.Hydrate(map[string]any{"id": 2}),
	}

	if err := students.Relationship("courses").EagerLoad(owners); err != nil {
		t.Fatal(err)
	}

	if finder.calls != 1 {
		t.Fatalf("through eager load issued %d queries, want 1", finder.calls)
	}
	opts := finder.opts[0]
	if opts.Joins != "INNER JOIN enrollments ON(courses.id = enrollments.course_id)" {
		t.Errorf("joins = %q", opts.Joins)
	}
	if opts.Select != "courses.*, enrollments.student_id AS _assoc_owner_key_0" {
		t.Errorf("select = %q", opts.Select)
	}

	one := owners[0].Many("courses")
	two := owners[1].Many("courses")
	if len(one) != 2 || len(two) != 1 {
		t.Fatalf("attached %d/%d courses, want 2/1", len(one), len(two))
	}

	// The helper key column never reaches the attached records, not even
	// through the hydration snapshot.
	if one[0].Get("_assoc_owner_key_0") != nil {
		t.Error("owner key alias leaked into attributes")
	}
	if one[0].Original("_assoc_owner_key_0") != nil {
		t.Error("owner key alias leaked into the dirty-tracking snapshot")
	}
	if one[0].IsDirty("name") {
		t.Error("eager-loaded record should hydrate clean")
	}

	// The shared course attaches as the original to one owner and as an
	// independent copy to the other.
	var shared30 *Record
	for _, c := range one {
		if c.Get("id") == 30 {
			shared30 = c
		}
	}
	if shared30 == nil || two[0].Get("id") != 30 {
		t.Fatal("both owners should see course 30")
	}
	if shared30 == two[0] {
		t.Error("owners share a record instance")
	}
	shared30.Set("name", "calculus")
	if two[0].Get("name") != "algebra" {
		t.Error("mutation leaked across owners")
	}
}

func TestEagerLoadHABTMSelect(t *testing.T) {
	finder := &stubFinder{}
	reg := NewRegistry(WithFinder(finder))
	students := reg.Register("Student")
	students.HasAndBelongsToMany("courses", Options{})
	courses := reg.Register("Course")

	finder.results = []*Record{
		courses.Hydrate(map[string]any{"id": 30, "_assoc_owner_key_0": 1}),
	}

	owners := []*Record{students.Hydrate(map[string]any{"id": 1})}
	if err := students.Relationship("courses").EagerLoad(owners); err != nil {
		t.Fatal(err)
	}

	opts := finder.opts[0]
	if opts.Select != "courses.*, courses_students.student_id AS _assoc_owner_key_0" {
		t.Errorf("select = %q", opts.Select)
	}
	if opts.Joins != "INNER JOIN courses_students ON(courses.id = courses_students.course_id)" {
		t.Errorf("joins = %q", opts.Joins)
	}
	if len(owners[0].Many("courses")) != 1 {
		t.Error("course not attached")
	}
}

func TestEagerLoadStripsRowLimits(t *testing.T) {
	finder := &stubFinder{}
	reg := NewRegistry(WithFinder(finder))
	authors := reg.Register("Author")
	authors.HasMany("posts", Options{Limit: 5, Offset: 2})
	reg.Register("Post")

	owners := []*Record{
		authors.Hydrate(map[string]any{"id": 1}),
		authors.Hydrate(map[string]any{"id": 2}),
	}
	if err := authors.Relationship("posts").EagerLoad(owners); err != nil {
		t.Fatal(err)
	}
	if finder.opts[0].Limit != 0 || finder.opts[0].Offset != 0 {
		t.Errorf("limit/offset = %d/%d, want stripped", finder.opts[0].Limit, finder.opts[0].Offset)
	}
}

func TestLoadIncludes(t *testing.T) {
	finder := &stubFinder{}
	reg := NewRegistry(WithFinder(finder))
	authors := reg.Register("Author")
	authors.HasMany("posts", Options{})
	authors.HasOne("profile", Options{})
	posts := reg.Register("Post")
	reg.Register("Profile")

	finder.results = []*Record{posts.Hydrate(map[string]any{"id": 10, "author_id": 1})}

	owners := []*Record{
		authors.Hydrate(map[string]any{"id": 1}),
		authors.Hydrate(map[string]any{"id": 2}),
	}

	if err := LoadIncludes(authors, owners, "posts", "profile"); err != nil {
		t.Fatal(err)
	}
	// One query per relationship, not per owner.
	if finder.calls != 2 {
		t.Errorf("calls = %d, want 2", finder.calls)
	}

	if err := LoadIncludes(authors, owners, "ghosts"); !IsConfiguration(err) {
		t.Errorf("unknown include err = %v", err)
	}
}

func TestParseIncludes(t *testing.T) {
	groups := parseIncludes([]string{"comments.author", "tags", "comments.votes"})
	if len(groups) != 2 {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[0].name != "comments" || len(groups[0].nested) != 2 {
		t.Errorf("comments group = %+v", groups[0])
	}
	if groups[1].name != "tags" || len(groups[1].nested) != 0 {
		t.Errorf("tags group = %+v", groups[1])
	}
}

func TestEagerLoadStringKeys(t *testing.T) {
	finder := &stubFinder{}
	reg := NewRegistry(WithFinder(finder))
	accounts := reg.Register("Account")
	accounts.HasMany("sessions", Options{})
	sessions := reg.Register("Session")

	a, b := uuid.NewString(), uuid.NewString()
	finder.results = []*Record{
		sessions.Hydrate(map[string]any{"id": 1, "account_id": a}),
		sessions.Hydrate(map[string]any{"id": 2, "account_id": a}),
	}

	owners := []*Record{
		accounts.Hydrate(map[string]any{"id": a}),
		accounts.Hydrate(map[string]any{"id": b}),
	}

	if err := accounts.Relationship("sessions").EagerLoad(owners); err != nil {
		t.Fatal(err)
	}
	if len(owners[0].Many("sessions")) != 2 {
		t.Errorf("uuid-keyed owner got %d sessions, want 2", len(owners[0].Many("sessions")))
	}
	if len(owners[1].Many("sessions")) != 0 {
		t.Errorf("unmatched uuid owner got %d sessions, want 0", len(owners[1].Many("sessions")))
	}
}
