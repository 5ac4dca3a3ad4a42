package seed

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/logging"
)

// Run popula terapeutas e pacientes de desenvolvimento quando o banco está
// vazio. Idempotente: não mexe em nada se já existir qualquer terapeuta.
func Run(ctx context.Context, db *gorm.DB) error {
	var n int
	if err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM therapists").Scan(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		logging.L.Debugw("[seed] terapeutas já existem, nada a fazer", "count", n)
		return nil
	}

	veteran := time.Now().AddDate(-3, 0, 0)
	rookie := time.Now().AddDate(0, -4, 0)
	t1, t2 := uuid.New(), uuid.New()
	if err := db.WithContext(ctx).Exec(`
		INSERT INTO therapists (id, full_name, start_of_service)
		VALUES (?, 'Terapeuta Sênior', ?), (?, 'Terapeuta Júnior', ?)
	`, t1, veteran, t2, rookie).Error; err != nil {
		return err
	}

	p1, p2 := uuid.New(), uuid.New()
	if err := db.WithContext(ctx).Exec(`
		INSERT INTO patients (id, full_name)
		VALUES (?, 'Paciente Exemplo A'), (?, 'Paciente Exemplo B')
	`, p1, p2).Error; err != nil {
		return err
	}

	logging.L.Infow("[seed] dados de desenvolvimento criados", "therapists", 2, "patients", 2)
	return nil
}
