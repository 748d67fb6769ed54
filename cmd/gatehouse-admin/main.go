// Command gatehouse-admin is the operator CLI: it bootstraps admin users,
// toggles account flags, seeds the permission pool and runs migrations
// directly against the database, bypassing the HTTP surface.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/platinummonkey/gatehouse/pkg/config"
	"github.com/platinummonkey/gatehouse/pkg/credentials"
	"github.com/platinummonkey/gatehouse/pkg/identity"
	"github.com/platinummonkey/gatehouse/pkg/identity/postgres"
)

// readPassword is a test seam for term.ReadPassword
var readPassword = term.ReadPassword

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Connect(postgres.Config{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	store := postgres.NewStore(db)

	switch os.Args[1] {
	case "migrate":
		if err := postgres.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		log.Info("migrations applied")
	case "newuser":
		newUser(ctx, log, cfg, store, os.Args[2:])
	case "edituser":
		editUser(ctx, log, store, os.Args[2:])
	case "newpermission":
		newPermission(ctx, log, store, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: gatehouse-admin <command> [flags]

commands:
  migrate                        apply pending database migrations
  newuser <email> [flags]        create a user, prompting for a password
  edituser <id|email> [flags]    update a user's flags
  newpermission <name>           add a permission to the pool`)
}

func newUser(ctx context.Context, log *logrus.Logger, cfg *config.Config, store identity.Store, args []string) {
	fs := flag.NewFlagSet("newuser", flag.ExitOnError)
	admin := fs.Bool("admin", false, "create the user as an admin")
	inactive := fs.Bool("inactive", false, "create the user deactivated")
	fs.Parse(args)

	if fs.NArg() != 1 {
		log.Fatal("newuser requires exactly one email argument")
	}
	email := fs.Arg(0)

	policy, err := credentials.NewPolicy(cfg.Auth.PasswordRegex, cfg.Auth.PasswordHelp)
	if err != nil {
		log.WithError(err).Fatal("invalid password policy pattern")
	}

	password := promptPassword(log, "Password: ")
	if err := policy.Validate(password); err != nil {
		log.Fatal(err.Error())
	}
	if promptPassword(log, "Repeat password: ") != password {
		log.Fatal("Passwords do not match")
	}

	hasher := credentials.NewHasher(cfg.Auth.BcryptCost)
	hashed, err := hasher.Hash(password)
	if err != nil {
		log.WithError(err).Fatal("failed to hash password")
	}

	user, err := store.CreateUser(ctx, email, hashed, !*inactive, *admin)
	if err != nil {
		log.WithError(err).Fatal("failed to create user")
	}
	log.WithFields(logrus.Fields{
		"id":        user.ID,
		"email":     user.Email,
		"is_active": user.IsActive,
		"is_admin":  user.IsAdmin,
	}).Info("user created")
}

func editUser(ctx context.Context, log *logrus.Logger, store identity.Store, args []string) {
	fs := flag.NewFlagSet("edituser", flag.ExitOnError)
	active := fs.String("active", "", "set is_active (true|false)")
	admin := fs.String("admin", "", "set is_admin (true|false)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		log.Fatal("edituser requires exactly one id or email argument")
	}

	user, err := store.GetUser(ctx, identity.ParseIdentifier(fs.Arg(0)))
	if err != nil {
		log.Fatal(err.Error())
	}

	update := identity.UserUpdate{}
	if *active != "" {
		v := *active == "true"
		update.IsActive = &v
	}
	if *admin != "" {
		v := *admin == "true"
		update.IsAdmin = &v
	}
	if update.IsActive == nil && update.IsAdmin == nil {
		log.Fatal("nothing to update: pass --active and/or --admin")
	}

	updated, err := store.UpdateUser(ctx, user.ID, update)
	if err != nil {
		log.Fatal(err.Error())
	}
	log.WithFields(logrus.Fields{
		"id":        updated.ID,
		"email":     updated.Email,
		"is_active": updated.IsActive,
		"is_admin":  updated.IsAdmin,
	}).Info("user updated")
}

func newPermission(ctx context.Context, log *logrus.Logger, store identity.Store, args []string) {
	if len(args) != 1 {
		log.Fatal("newpermission requires exactly one name argument")
	}

	perm, err := store.CreatePermission(ctx, args[0])
	if err != nil {
		log.Fatal(err.Error())
	}
	log.WithFields(logrus.Fields{"id": perm.ID, "name": perm.Name}).Info("permission created")
}

// promptPassword reads a password without echo, falling back to a line read
// when stdin is not a terminal (piped input in scripts).
func promptPassword(log *logrus.Logger, prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			log.WithError(err).Fatal("failed to read password")
		}
		return string(raw)
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.WithError(err).Fatal("failed to read password")
	}
	return strings.TrimRight(line, "\r\n")
}
