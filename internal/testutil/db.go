// Package testutil abre conexões de banco para testes de integração.
package testutil

import (
	"context"
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/migrate"
)

// OpenDB conecta no banco apontado por DATABASE_URL e aplica as migrations.
// Pula o teste quando a variável não está definida, mantendo a suíte verde
// em ambientes sem Postgres.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL não definido; pulando teste de integração")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("abrir banco: %v", err)
	}
	if err := migrate.Run(context.Background(), db, migrationsDir(t)); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	for _, dir := range []string{"migrations", "../migrations", "../../migrations", "../../../migrations"} {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}
	t.Fatal("diretório migrations não encontrado")
	return ""
}
