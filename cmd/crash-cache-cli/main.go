// crash-cache-cli is the operational CLI described in spec.md §6: project
// provisioning, archive export/import/view, and the ruminate recovery
// procedure. Plain os.Args subcommand dispatch, matching the teacher's
// other cmd/ tools (reasoning-graph/cmd/canonicalize_tool) rather than
// pulling in a flag-parsing framework for a handful of operator commands.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	"github.com/ethicnology/crash-cache/internal/codec"
	"github.com/ethicnology/crash-cache/internal/models"
	"github.com/ethicnology/crash-cache/internal/recovery"
	"github.com/ethicnology/crash-cache/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := sql.Open("postgres", requireDatabaseURL())
	if err != nil {
		fatalf("open db: %v", err)
	}
	defer db.Close()

	st := store.New(db)
	ctx := context.Background()

	switch os.Args[1] {
	case "project":
		runProject(ctx, st, os.Args[2:])
	case "archive":
		runArchive(ctx, st, os.Args[2:])
	case "ruminate":
		runRuminate(ctx, st, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  crash-cache-cli project {create|delete|list} [args]
  crash-cache-cli archive {export|import|view} [args]
  crash-cache-cli ruminate [--yes]`)
}

func requireDatabaseURL() string {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		fatalf("DATABASE_URL required")
	}
	return url
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// --- project -----------------------------------------------------------

func runProject(ctx context.Context, st *store.Store, args []string) {
	if len(args) < 1 {
		fatalf("usage: project {create|delete|list}")
	}
	switch args[0] {
	case "create":
		var publicKey, name *string
		if len(args) > 1 && args[1] != "" {
			publicKey = &args[1]
		}
		if len(args) > 2 && args[2] != "" {
			name = &args[2]
		}
		id, err := st.CreateProject(ctx, st.Ambient(), publicKey, name)
		if err != nil {
			fatalf("create project: %v", err)
		}
		fmt.Printf("created project %d\n", id)

	case "delete":
		if len(args) < 2 {
			fatalf("usage: project delete <id>")
		}
		id := parseInt32(args[1])
		if err := st.DeleteProject(ctx, st.Ambient(), id); err != nil {
			fatalf("delete project: %v", err)
		}
		fmt.Printf("deleted project %d\n", id)

	case "list":
		projects, err := st.ListProjects(ctx, st.Ambient())
		if err != nil {
			fatalf("list projects: %v", err)
		}
		for _, p := range projects {
			fmt.Printf("%d\t%s\t%s\n", p.ID, deref(p.PublicKey), deref(p.Name))
		}

	default:
		fatalf("usage: project {create|delete|list}")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseInt32(s string) int32 {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		fatalf("invalid id %q: %v", s, err)
	}
	return int32(id)
}

// --- archive -------------------------------------------------------------

// archiveRecord is the JSONL shape for export/import (spec.md §6, R2).
type archiveRecord struct {
	Hash         string `json:"hash"`
	ProjectID    int32  `json:"project_id"`
	Payload      string `json:"payload"` // base64(compressed_payload)
	OriginalSize *int32 `json:"original_size,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func runArchive(ctx context.Context, st *store.Store, args []string) {
	if len(args) < 1 {
		fatalf("usage: archive {export|import|view <hash>}")
	}
	switch args[0] {
	case "export":
		exportArchives(ctx, st)
	case "import":
		importArchives(ctx, st)
	case "view":
		if len(args) < 2 {
			fatalf("usage: archive view <hash>")
		}
		viewArchive(ctx, st, args[1])
	default:
		fatalf("usage: archive {export|import|view <hash>}")
	}
}

func exportArchives(ctx context.Context, st *store.Store) {
	archives, err := st.ListArchives(ctx, st.Ambient())
	if err != nil {
		fatalf("list archives: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, a := range archives {
		if err := enc.Encode(toRecord(a)); err != nil {
			fatalf("encode archive %s: %v", a.Hash, err)
		}
	}
}

func importArchives(ctx context.Context, st *store.Store) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<25)

	imported := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec archiveRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			fatalf("parse line: %v", err)
		}
		a, err := fromRecord(rec)
		if err != nil {
			fatalf("decode archive %s: %v", rec.Hash, err)
		}
		if err := st.SaveArchive(ctx, st.Ambient(), a); err != nil {
			fatalf("save archive %s: %v", a.Hash, err)
		}
		imported++
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		fatalf("read stdin: %v", err)
	}
	fmt.Printf("imported %d archives\n", imported)
}

func viewArchive(ctx context.Context, st *store.Store, hash string) {
	a, err := st.FindArchiveByHash(ctx, st.Ambient(), hash)
	if err != nil {
		fatalf("view archive %s: %v", hash, err)
	}
	plain, err := codec.Decompress(a.CompressedPayload)
	if err != nil {
		fatalf("decompress archive %s: %v", hash, err)
	}
	os.Stdout.Write(plain)
	fmt.Println()
}

func toRecord(a models.Archive) archiveRecord {
	return archiveRecord{
		Hash:         a.Hash,
		ProjectID:    a.ProjectID,
		Payload:      base64.StdEncoding.EncodeToString(a.CompressedPayload),
		OriginalSize: a.OriginalSize,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
}

func fromRecord(rec archiveRecord) (models.Archive, error) {
	payload, err := base64.StdEncoding.DecodeString(rec.Payload)
	if err != nil {
		return models.Archive{}, fmt.Errorf("decode base64 payload: %w", err)
	}
	return models.Archive{
		Hash:              rec.Hash,
		ProjectID:         rec.ProjectID,
		CompressedPayload: payload,
		OriginalSize:      rec.OriginalSize,
	}, nil
}

// --- ruminate ------------------------------------------------------------

func runRuminate(ctx context.Context, st *store.Store, args []string) {
	yes := len(args) > 0 && args[0] == "--yes"

	archives, _, _, _, err := st.CountRawStats(ctx)
	if err != nil {
		fatalf("count archives: %v", err)
	}

	fmt.Printf("This will clear every derived table and re-queue %d archives for processing.\n", archives)
	fmt.Println("project and archive rows are kept intact.")

	if !yes {
		fmt.Print("Are you sure? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		if input != "y\n" && input != "Y\n" {
			fmt.Println("Aborted.")
			return
		}
	}

	report, err := recovery.NewUseCase(st).Run(ctx)
	if err != nil {
		fatalf("ruminate: %v", err)
	}
	fmt.Printf("done: %d archives re-queued.\n", report.ArchivesRequeued)
}
