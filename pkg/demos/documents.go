package demos

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Sternrassler/docdb-demos/pkg/docdb"
	"github.com/Sternrassler/docdb-demos/pkg/document"
)

const (
	attachmentFile        = "Text.txt"
	attachmentContentType = "text/plain"
)

// RunDocuments creates, reads and replaces documents from typed structs,
// dynamic values, raw JSON files and typed reads, then attaches media.
func RunDocuments(ctx context.Context, env *Env) error {
	steps := []func(context.Context, *Env) error{
		documentsFromStructs,
		documentsFromValues,
		documentsFromFiles,
		documentsTyped,
		documentAttachments,
	}
	for _, step := range steps {
		if err := step(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

// findDocument looks a document up by id through a query.
func findDocument(ctx context.Context, env *Env, id string) (*docdb.Document, error) {
	q := docdb.SQLQuery{
		Query:      "SELECT * FROM root r WHERE r.id = @id",
		Parameters: []docdb.SQLParameter{{Name: "@id", Value: id}},
	}
	docs, err := drain(ctx, env, docdb.QueryDocumentsAs[docdb.Document](env.Client, env.Collection, q, docdb.QueryOptions{}))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("document %q: %w", id, docdb.ErrNotFound)
	}
	return &docs[0], nil
}

func documentsFromStructs(ctx context.Context, env *Env) error {
	env.Console.Println("Created SalesOrder documents:")
	for _, order := range sampleOrders() {
		created, err := env.Client.CreateDocument(ctx, env.Collection, order, nil)
		if err != nil {
			return err
		}
		env.Console.Printf(" - %s\n", created.ID)
	}

	env.Console.Separator()

	env.Console.Printf("Updating ShippedDate (POCO1)...")
	doc, err := findDocument(ctx, env, "POCO1")
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	var order SalesOrder
	if err := doc.Decode(&order); err != nil {
		return fmt.Errorf("decode POCO1: %w", err)
	}
	order.ShippedDate = time.Now().UTC()
	if _, err := env.Client.ReplaceDocument(ctx, doc.Link(), order); err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("DONE!")
	return nil
}

func documentsFromValues(ctx context.Context, env *Env) error {
	const id = "DYN01"

	env.Console.Separator()
	env.Console.Printf("Created dynamic order document (%s): ", id)
	total, _ := document.Decimal("5.95")
	order := document.Object(
		document.F("id", document.String(id)),
		document.F("purchaseOrderNumber", document.String("PO18009186470")),
		document.F("orderDate", document.Time(time.Now())),
		document.F("total", total),
	)
	created, err := env.Client.CreateDocument(ctx, env.Collection, order, nil)
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("DONE!")

	env.Console.Println()
	env.Console.Printf("Updating ShippedDate (%s)...", id)
	read, err := env.Client.ReadDocument(ctx, created.Link())
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	body := read.Body.Clone()
	body.Set("ShippedDate", document.Time(time.Now()))
	if _, err := env.Client.ReplaceDocument(ctx, read.Link(), body); err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("DONE!")
	return nil
}

func documentsFromFiles(ctx context.Context, env *Env) error {
	env.Console.Separator()

	files, err := filepath.Glob(filepath.Join(env.Settings.DataDir, "documents", "*.json"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, name := range files {
		created, err := createFromFile(ctx, env, name)
		if err != nil {
			return err
		}
		body, _ := created.Body.MarshalJSON()
		env.Console.Printf("Created document from %q:\n%s\n", name, body)
	}

	env.Console.Separator()

	env.Console.Printf("Reading %q document...", "JSON1")
	json1, err := findDocument(ctx, env, "JSON1")
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	content, err := json1.Body.MarshalJSON()
	if err != nil {
		return err
	}
	env.Console.Done(fmt.Sprintf("DONE; %d Bytes", len(content)))

	env.Console.Separator()

	env.Console.Printf("Replacing %q with a %q order...", "JSON1", "Cancelled")
	cancelled := strings.NewReader(`{"id": "JSON1","PurchaseOrderNumber": "PO18009186470","Status": "Cancelled"}`)
	if _, err := env.Client.ReplaceDocument(ctx, json1.Link(), cancelled); err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("DONE!")
	return nil
}

// createFromFile streams a JSON file into the collection.
func createFromFile(ctx context.Context, env *Env, name string) (*docdb.Document, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := env.Client.CreateDocument(ctx, env.Collection, f, nil)
	if err != nil {
		return nil, fmt.Errorf("create document from %s: %w", name, err)
	}
	return doc, nil
}

func documentsTyped(ctx context.Context, env *Env) error {
	doc01 := sampleOrderDocument()

	env.Console.Separator()
	env.Console.Printf("Creating a new SalesOrderDocument (ID: %s)...", doc01.ID)
	created, err := env.Client.CreateDocument(ctx, env.Collection, doc01, nil)
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("CREATED!")

	env.Console.Separator()
	env.Console.Printf("Replacing %q with an updated SalesOrderDocument...", doc01.ID)
	read, err := env.Client.ReadDocument(ctx, created.Link())
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	var order SalesOrderDocument
	if err := read.Decode(&order); err != nil {
		return fmt.Errorf("decode %s: %w", doc01.ID, err)
	}
	shipped := time.Now().UTC()
	order.ShipDate = &shipped
	if _, err := env.Client.ReplaceDocument(ctx, read.Link(), order); err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("REPLACED!")
	return nil
}

func documentAttachments(ctx context.Context, env *Env) error {
	env.Console.Separator()
	env.Console.Printf("Creating a new document...")
	totalDue, _ := document.Decimal("985.018")
	doc, err := env.Client.CreateDocument(ctx, env.Collection, document.Object(
		document.F("id", document.String("PO1800243243470")),
		document.F("CustomerId", document.Int(1092)),
		document.F("TotalDue", totalDue),
	), nil)
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("CREATED!")

	data, err := os.ReadFile(filepath.Join(env.Settings.DataDir, "attachments", attachmentFile))
	if err != nil {
		return err
	}

	env.Console.Separator()
	env.Console.Printf("Attaching %q to the document...", attachmentFile)
	_, err = env.Client.CreateAttachmentMedia(ctx, doc, bytes.NewReader(data), docdb.MediaOptions{
		ContentType: attachmentContentType,
		Slug:        attachmentFile,
	})
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("ATTACHED!")

	if env.Media != nil {
		if err := attachExternal(ctx, env, doc, data); err != nil {
			return err
		}
	}

	env.Console.Separator()
	atts, err := drain(ctx, env, env.Client.AttachmentFeed(doc))
	if err != nil {
		return fmt.Errorf("list attachments: %w", err)
	}
	for _, att := range atts {
		env.Console.Printf("Retrieving attachment %q...", att.ID)
		n, err := readAttachment(ctx, env, &att)
		if err != nil {
			env.Console.Failed("FAILED!")
			return err
		}
		env.Console.Done(fmt.Sprintf("RETRIEVED; %d Bytes", n))
	}
	return nil
}

// attachExternal stores the media in the object store and attaches a link
// to it instead of the bytes.
func attachExternal(ctx context.Context, env *Env, doc *docdb.Document, data []byte) error {
	key := doc.ID + "/" + attachmentFile

	env.Console.Println()
	env.Console.Printf("Linking %q from the media store...", key)
	url, err := env.Media.Put(ctx, key, bytes.NewReader(data), int64(len(data)), attachmentContentType)
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	_, err = env.Client.CreateAttachmentLink(ctx, doc, docdb.Attachment{
		Resource:    docdb.Resource{ID: "external-" + attachmentFile},
		ContentType: attachmentContentType,
		Media:       url,
	})
	if err != nil {
		env.Console.Failed("FAILED!")
		return err
	}
	env.Console.Done("LINKED!")
	return nil
}

// readAttachment fetches the media of att and returns its size.
func readAttachment(ctx context.Context, env *Env, att *docdb.Attachment) (int, error) {
	if !att.IsExternal() {
		media, err := env.Client.ReadMedia(ctx, att.MediaLink())
		if err != nil {
			return 0, err
		}
		return len(media.Data), nil
	}
	if env.Media == nil {
		return 0, fmt.Errorf("attachment %s links to %s but no media store is configured", att.ID, att.Media)
	}
	key, err := env.Media.KeyFromURL(att.Media)
	if err != nil {
		return 0, err
	}
	data, _, err := env.Media.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
