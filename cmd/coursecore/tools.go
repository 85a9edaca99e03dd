package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/coursecore/internal/catalog"
	"github.com/pavelanni/coursecore/internal/model"
	"github.com/pavelanni/coursecore/internal/ordering"
	"github.com/pavelanni/coursecore/internal/service"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			st, err := openStore(viperForCmd(cmd))
			if err != nil {
				return err
			}
			defer st.Close()

			at := time.Now().UTC().Format(time.RFC3339)
			if err := st.SetMetadata(cmd.Context(), "migrated_at", at); err != nil {
				return fmt.Errorf("record migration: %w", err)
			}
			slog.Info("schema is up to date", "driver", st.Dialect(), "migrated_at", at)
			return nil
		},
	}
	addStoreFlags(cmd)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <catalog.json>...",
		Short: "Import courses, chapters and exams from catalog files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			st, err := openStore(viperForCmd(cmd))
			if err != nil {
				return err
			}
			defer st.Close()
			return importFiles(cmd, catalog.NewImporter(service.New(st), st), args)
		},
	}
	addStoreFlags(cmd)
	return cmd
}

func importFiles(cmd *cobra.Command, im *catalog.Importer, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		res, err := im.Import(cmd.Context(), path, data)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		switch {
		case res.Changed:
			slog.Warn("catalog file changed since last import, skipping", "path", path)
		case res.Skipped:
			slog.Info("catalog file unchanged, skipping", "path", path)
		default:
			slog.Info("imported catalog", "path", path,
				"courses", res.Courses, "chapters", res.Chapters, "questions", res.Questions)
		}
	}
	return nil
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			v := viperForCmd(cmd)
			st, err := openStore(v)
			if err != nil {
				return err
			}
			defer st.Close()

			u, err := service.New(st).CreateUser(cmd.Context(), service.SystemActor, service.UserInput{
				Username: v.GetString("username"),
				Fullname: v.GetString("fullname"),
				Email:    v.GetString("email"),
				Password: v.GetString("password"),
				Role:     model.UserRole(v.GetString("role")),
			})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			slog.Info("created user", "id", u.ID, "username", u.Username, "role", u.Role)
			return nil
		},
	}
	addStoreFlags(add)
	f := add.Flags()
	f.String("username", "", "Login name (required)")
	f.String("password", "", "Password (required)")
	f.String("role", string(model.UserRoleStudent), "Role (STUDENT, TEACHER, ADMIN)")
	f.String("fullname", "", "Display name (defaults to username)")
	f.String("email", "", "Email address")
	_ = add.MarkFlagRequired("username")
	_ = add.MarkFlagRequired("password")

	cmd.AddCommand(add)
	return cmd
}

func reorderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Compact the order indices of one parent's children",
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			v := viperForCmd(cmd)
			st, err := openStore(v)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			var scope ordering.Scope
			switch {
			case v.GetString("chapters-of") != "":
				id := v.GetString("chapters-of")
				if _, err := st.ModuleByID(ctx, id); err != nil {
					return fmt.Errorf("module %s: %w", id, err)
				}
				scope = ordering.Chapters(id)
			case v.GetString("questions-of-exam") != "":
				id := v.GetString("questions-of-exam")
				if _, err := st.ExamByID(ctx, id); err != nil {
					return fmt.Errorf("exam %s: %w", id, err)
				}
				scope = ordering.ExamQuestions(id)
			case v.GetString("questions-of-pretest") != "":
				id := v.GetString("questions-of-pretest")
				if _, err := st.PretestByID(ctx, id); err != nil {
					return fmt.Errorf("pretest %s: %w", id, err)
				}
				scope = ordering.PretestQuestions(id)
			default:
				return fmt.Errorf("one of --chapters-of, --questions-of-exam or --questions-of-pretest is required")
			}

			if err := service.New(st).Ordering().Reorder(ctx, scope); err != nil {
				return fmt.Errorf("reorder %s: %w", scope, err)
			}
			slog.Info("reordered", "scope", scope.String())
			return nil
		},
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.String("chapters-of", "", "Module ID whose chapters to compact")
	f.String("questions-of-exam", "", "Exam ID whose questions to compact")
	f.String("questions-of-pretest", "", "Pretest ID whose questions to compact")
	cmd.MarkFlagsMutuallyExclusive("chapters-of", "questions-of-exam", "questions-of-pretest")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam results as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			v := viperForCmd(cmd)
			st, err := openStore(v)
			if err != nil {
				return err
			}
			defer st.Close()

			export, err := service.New(st).ExportExam(cmd.Context(), service.SystemActor, v.GetString("exam-id"))
			if err != nil {
				return fmt.Errorf("export exam: %w", err)
			}
			data, err := json.MarshalIndent(export, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal JSON: %w", err)
			}

			outPath := v.GetString("output")
			var w io.Writer
			if outPath == "" || outPath == "-" {
				w = os.Stdout
			} else {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			_, _ = fmt.Fprintln(w)
			return nil
		},
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.String("exam-id", "", "Exam to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
}
