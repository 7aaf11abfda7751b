package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/claims-management/internal"
	"github.com/frahmantamala/claims-management/internal/core/identity"
	"github.com/frahmantamala/claims-management/internal/user"
	userPostgres "github.com/frahmantamala/claims-management/internal/user/postgres"
	"github.com/frahmantamala/claims-management/pkg/logger"
	"github.com/frahmantamala/claims-management/pkg/password"
)

const seedPassword = "password123"

var seedUsers = []struct {
	FullName string
	Surname  string
	Email    string
	Role     identity.Role
	Gender   string
}{
	{"Thandi", "Mokoena", "lecturer@claims.local", identity.RoleLecturer, "Female"},
	{"Sipho", "Dlamini", "coordinator@claims.local", identity.RoleCoordinator, "Male"},
	{"Lerato", "Nkosi", "manager@claims.local", identity.RoleManager, "Female"},
	{"Naledi", "Khumalo", "hr@claims.local", identity.RoleHRManager, "Female"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with one user per role",
	Long:  `Seed the database with a lecturer, coordinator, manager and HR manager for development.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		lg := logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gdb, err := initGorm(db, cfg.Observability.Logging.Level)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		ctx := context.Background()
		repo := userPostgres.NewUserRepository(gdb)
		service := user.NewService(repo, password.NewHasher(cfg.Security.BCryptCost), lg)

		for _, su := range seedUsers {
			existing, err := repo.GetByEmail(ctx, su.Email)
			if err == nil {
				if resetSeed {
					if err := repo.UpdatePassword(ctx, existing.ID, mustHash(cfg.Security.BCryptCost)); err != nil {
						log.Fatalf("failed to reset password for %s: %v", su.Email, err)
					}
					fmt.Println("Reset password for", su.Email)
					continue
				}
				fmt.Println(su.Email, "already exists; skipping")
				continue
			}
			if !stderrors.Is(err, internal.ErrUserNotFound) {
				log.Fatalf("failed to look up %s: %v", su.Email, err)
			}

			_, err = service.Register(ctx, user.RegisterDTO{
				FullName:        su.FullName,
				Surname:         su.Surname,
				Email:           su.Email,
				Role:            su.Role.String(),
				Gender:          su.Gender,
				Password:        seedPassword,
				ConfirmPassword: seedPassword,
			})
			if err != nil {
				log.Fatalf("failed to seed %s: %v", su.Email, err)
			}
			fmt.Printf("Seeded %s user: %s\n", su.Role, su.Email)
		}

		fmt.Println("Seed password for every user:", seedPassword)
	},
}

func mustHash(cost int) string {
	hash, err := password.NewHasher(cost).Hash(seedPassword)
	if err != nil {
		log.Fatalf("failed to hash seed password: %v", err)
	}
	return hash
}
