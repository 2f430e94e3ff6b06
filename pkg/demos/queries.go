package demos

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/docdb-demos/pkg/docdb"
	"github.com/Sternrassler/docdb-demos/pkg/feed"
)

// Family is the query fixture document.
type Family struct {
	ID           string   `json:"id"`
	LastName     string   `json:"LastName"`
	Parents      []Parent `json:"Parents"`
	Children     []Child  `json:"Children"`
	Address      Address  `json:"Address"`
	IsRegistered bool     `json:"IsRegistered"`
}

// Parent of a Family.
type Parent struct {
	FamilyName string `json:"FamilyName,omitempty"`
	FirstName  string `json:"FirstName"`
}

// Child of a Family.
type Child struct {
	FamilyName string `json:"FamilyName,omitempty"`
	FirstName  string `json:"FirstName"`
	Gender     string `json:"Gender"`
	Grade      int    `json:"Grade"`
	Pets       []Pet  `json:"Pets,omitempty"`
}

// Pet of a Child.
type Pet struct {
	GivenName string `json:"GivenName"`
}

// Address of a Family.
type Address struct {
	State  string `json:"State"`
	County string `json:"County"`
	City   string `json:"City"`
}

// Families returns the two fixture families, Andersen first.
func Families() []Family {
	return []Family{
		{
			ID:       "AndersenFamily",
			LastName: "Andersen",
			Parents:  []Parent{{FirstName: "Thomas"}, {FirstName: "Mary Kay"}},
			Children: []Child{{
				FirstName: "Henriette Thaulow",
				Gender:    "female",
				Grade:     5,
				Pets:      []Pet{{GivenName: "Fluffy"}},
			}},
			Address:      Address{State: "WA", County: "King", City: "Seattle"},
			IsRegistered: true,
		},
		{
			ID:       "WakefieldFamily",
			LastName: "Wakefield",
			Parents: []Parent{
				{FamilyName: "Wakefield", FirstName: "Robin"},
				{FamilyName: "Miller", FirstName: "Ben"},
			},
			Children: []Child{
				{
					FamilyName: "Merriam",
					FirstName:  "Jesse",
					Gender:     "female",
					Grade:      8,
					Pets:       []Pet{{GivenName: "Goofy"}, {GivenName: "Shadow"}},
				},
				{FamilyName: "Miller", FirstName: "Lisa", Gender: "female", Grade: 1},
			},
			Address: Address{State: "NY", County: "Manhattan", City: "NY"},
		},
	}
}

// Query texts of the queries demo.
const (
	QueryFamilyCities    = "SELECT f.LastName AS Name, f.Address.City AS City FROM Families f WHERE f.id='AndersenFamily' OR f.Address.City='NY'"
	QueryChildren        = "SELECT c FROM Families f JOIN c IN f.Children"
	QueryFamilyChildren  = "SELECT f.id FROM Families f JOIN c IN f.Children"
	QueryFamilyPets      = "SELECT f.id, c.FirstName AS child, p.GivenName AS pet FROM Families f JOIN c IN f.Children JOIN p IN c.Pets"
	QueryFamilyPetFluffy = QueryFamilyPets + " WHERE p.GivenName = 'Fluffy'"
)

// errUnexpectedCount marks a query whose result size is not the expected one.
var errUnexpectedCount = errors.New("unexpected result count")

const familiesCollectionID = "Test"

// RunQueries stores the families and queries them by equality, inequality,
// range, projection, join and explicit paging.
func RunQueries(ctx context.Context, env *Env) error {
	coll, err := getOrCreateCollection(ctx, env, familiesCollectionID)
	if err != nil {
		return err
	}
	env.Console.Println()
	for _, f := range Families() {
		env.Console.Printf("Creating the %s document...", f.ID)
		if _, err := env.Client.CreateDocument(ctx, coll, f, nil); err != nil {
			env.Console.Failed("FAILED!")
			return err
		}
		env.Console.Done("CREATED!")
	}

	sections := []func(context.Context, *Env, *docdb.Collection) error{
		queryAll,
		queryEquality,
		queryInequality,
		queryRange,
		querySubdocuments,
		queryJoins,
		queryPaging,
	}
	for _, section := range sections {
		env.Console.Println()
		if err := section(ctx, env, coll); err != nil {
			return err
		}
	}
	return nil
}

// runQuery drains q and checks the number of results.
func runQuery(ctx context.Context, env *Env, coll *docdb.Collection, kind string, expected int, q docdb.SQLQuery, opts docdb.QueryOptions) error {
	env.Console.Printf("Querying documents via %s...", kind)
	items, err := drain(ctx, env, env.Client.QueryDocuments(coll, q, opts))
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	if len(items) != expected {
		env.Console.Failed("FAILED!")
		return fmt.Errorf("%w: the query returned %d documents instead of the expected %d", errUnexpectedCount, len(items), expected)
	}
	env.Console.Done("SUCCESS!")
	return nil
}

func queryAll(ctx context.Context, env *Env, coll *docdb.Collection) error {
	env.Console.Println("QueryAllDocuments:")
	if err := runQuery(ctx, env, coll, "SQL", 2, docdb.Query("SELECT * FROM Families"), docdb.QueryOptions{}); err != nil {
		return err
	}
	env.Console.Printf("Reading the document feed...")
	docs, err := drain(ctx, env, env.Client.DocumentFeed(coll))
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	if len(docs) != 2 {
		env.Console.Failed("FAILED!")
		return fmt.Errorf("%w: the feed returned %d documents instead of the expected 2", errUnexpectedCount, len(docs))
	}
	env.Console.Done("SUCCESS!")
	return nil
}

func queryEquality(ctx context.Context, env *Env, coll *docdb.Collection) error {
	env.Console.Println(`QueryWithEquality ("AndersenFamily" Only!):`)
	if err := runQuery(ctx, env, coll, "SQL", 1,
		docdb.Query("SELECT * FROM Families f WHERE f.id='AndersenFamily'"), docdb.QueryOptions{}); err != nil {
		return err
	}
	if err := runQuery(ctx, env, coll, "parameterized SQL", 1, docdb.SQLQuery{
		Query:      "SELECT * FROM Families f WHERE f.id = @id",
		Parameters: []docdb.SQLParameter{{Name: "@id", Value: "AndersenFamily"}},
	}, docdb.QueryOptions{}); err != nil {
		return err
	}

	env.Console.Println()
	env.Console.Println("QueryWithEquality (AndersenFamily AND Seattle):")
	if err := runQuery(ctx, env, coll, "SQL", 1,
		docdb.Query("SELECT * FROM Families f WHERE f.id='AndersenFamily' AND f.Address.City='Seattle'"), docdb.QueryOptions{}); err != nil {
		return err
	}

	env.Console.Println()
	env.Console.Println("QueryWithEquality (SQL, AndersenFamily OR NY):")
	type familyCity struct {
		Name string `json:"Name"`
		City string `json:"City"`
	}
	cities, err := drain(ctx, env, docdb.QueryDocumentsAs[familyCity](env.Client, coll, docdb.Query(QueryFamilyCities), docdb.QueryOptions{}))
	if err != nil {
		return err
	}
	for _, c := range cities {
		env.Console.Printf("The %s family lives in %s\n", c.Name, c.City)
	}
	return nil
}

func queryInequality(ctx context.Context, env *Env, coll *docdb.Collection) error {
	env.Console.Println(`QueryWithInequality (!= "AndersenFamily"):`)
	if err := runQuery(ctx, env, coll, "SQL", 1,
		docdb.Query("SELECT * FROM Families f WHERE f.id != 'AndersenFamily'"), docdb.QueryOptions{}); err != nil {
		return err
	}

	env.Console.Println()
	env.Console.Println("QueryWithInequality (SQL, WakefieldFamily != NY):")
	if err := runQuery(ctx, env, coll, "SQL", 0,
		docdb.Query("SELECT * FROM Families f WHERE f.id = 'WakefieldFamily' AND f.Address.City != 'NY'"), docdb.QueryOptions{}); err != nil {
		return err
	}

	env.Console.Println()
	env.Console.Println("QueryWithInequality (SQL, AndersenFamily != NY):")
	return runQuery(ctx, env, coll, "SQL", 1,
		docdb.Query("SELECT * FROM Families f WHERE f.id = 'AndersenFamily' AND f.Address.City != 'NY'"), docdb.QueryOptions{})
}

func queryRange(ctx context.Context, env *Env, coll *docdb.Collection) error {
	// hash-indexed paths answer range filters only as a scan
	env.Console.Println("QueryWithRangeOperators (Children[0].Grade > 5):")
	return runQuery(ctx, env, coll, "SQL", 1,
		docdb.Query("SELECT * FROM Families f WHERE f.Children[0].Grade > 5"), docdb.QueryOptions{EnableScan: true})
}

func querySubdocuments(ctx context.Context, env *Env, coll *docdb.Collection) error {
	env.Console.Println("QueryWithSubdocuments (SQL):")
	return printQuery(ctx, env, coll, QueryChildren, 3)
}

func queryJoins(ctx context.Context, env *Env, coll *docdb.Collection) error {
	steps := []struct {
		title    string
		query    string
		expected int
	}{
		{"QueryWithJoins (Family => Children; SQL):", QueryFamilyChildren, 3},
		{"QueryWithJoins (Family => Children => Pets; SQL):", QueryFamilyPets, 3},
		{"QueryWithJoins (Family => Children => Pets; Filtered; SQL):", QueryFamilyPetFluffy, 1},
	}
	for i, s := range steps {
		if i > 0 {
			env.Console.Println()
		}
		env.Console.Println(s.title)
		if err := printQuery(ctx, env, coll, s.query, s.expected); err != nil {
			return err
		}
	}
	return nil
}

// printQuery prints every result of query as JSON.
func printQuery(ctx context.Context, env *Env, coll *docdb.Collection, query string, expected int) error {
	items, err := drain(ctx, env, env.Client.QueryDocuments(coll, docdb.Query(query), docdb.QueryOptions{}))
	if err != nil {
		return err
	}
	for _, item := range items {
		out, err := item.MarshalJSON()
		if err != nil {
			return err
		}
		env.Console.Println(string(out))
	}
	if len(items) != expected {
		return fmt.Errorf("%w: %q returned %d results instead of the expected %d", errUnexpectedCount, query, len(items), expected)
	}
	return nil
}

// queryPaging reads the families one per page, first through the pager and
// then page by page, resuming from a token that went through its text form
// as it would between two sessions.
func queryPaging(ctx context.Context, env *Env, coll *docdb.Collection) error {
	env.Console.Println("QueryWithPaging (1 document per page):")
	fetch := docdb.QueryDocumentsAs[Family](env.Client, coll, docdb.Query("SELECT * FROM Families"), docdb.QueryOptions{})

	env.Console.Printf("Reading every page...")
	all, err := feed.NewPager[Family](feed.Config{PageSize: 1}).Drain(ctx, fetch)
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	if len(all) != 2 {
		env.Console.Failed("FAILED!")
		return fmt.Errorf("%w: paging returned %d families instead of the expected 2", errUnexpectedCount, len(all))
	}
	env.Console.Done("SUCCESS!")

	env.Console.Printf("Reading the first page...")
	first, err := fetch(ctx, feed.Request{MaxItemCount: 1})
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	if err := expectOnly(first.Items, "AndersenFamily"); err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("SUCCESS!")

	saved, err := first.Next.MarshalText()
	if err != nil {
		return err
	}
	var resumed feed.Token
	if err := resumed.UnmarshalText(saved); err != nil {
		return err
	}

	env.Console.Printf("Resuming from the saved continuation...")
	second, err := fetch(ctx, feed.Request{MaxItemCount: 1, Continuation: resumed})
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	if err := expectOnly(second.Items, "WakefieldFamily"); err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("SUCCESS!")
	return nil
}

func expectOnly(page []Family, id string) error {
	if len(page) == 1 && page[0].ID == id {
		return nil
	}
	ids := make([]string, len(page))
	for i, f := range page {
		ids[i] = f.ID
	}
	return fmt.Errorf("%w: page holds %q, want only %q", errUnexpectedCount, ids, id)
}
