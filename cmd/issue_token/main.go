// issue_token emite un token de acceso firmado con JWT_SECRET para un operador,
// un supervisor o el usuario de integración del sistema de documentos origen.
//
// Uso: go run ./cmd/issue_token -company <id> -role integracion [-user erp] [-minutes 525600]
// Lee JWT_SECRET, JWT_ISSUER y JWT_EXPIRATION_MINUTES del entorno o de .env.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jhoicas/Gatepass-api/pkg/config"
	"github.com/jhoicas/Gatepass-api/pkg/jwt"
)

var roles = map[string]bool{"operador": true, "supervisor": true, "integracion": true}

func main() {
	companyID := flag.String("company", "", "ID de la empresa (obligatorio)")
	role := flag.String("role", "", "operador | supervisor | integracion")
	userID := flag.String("user", "", "ID del usuario; por defecto el rol")
	minutes := flag.Int("minutes", 0, "vigencia en minutos; por defecto JWT_EXPIRATION_MINUTES")
	flag.Parse()

	if *companyID == "" || !roles[*role] {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	if *userID == "" {
		*userID = *role
	}
	exp := cfg.JWT.Expiration
	if *minutes > 0 {
		exp = *minutes
	}

	token, err := jwt.Generate(cfg.JWT.Secret, *userID, *companyID, *role, cfg.JWT.Issuer, exp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Emitir token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
