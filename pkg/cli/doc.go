// Package cli provides the residencia command-line interface for the
// residence management backend.
//
// # Commands
//
// Session:
//
//	residencia login -email ana@uni.edu
//	residencia google-login -id-token "$GOOGLE_ID_TOKEN"
//	residencia register -name "Ana Pérez" -email ana@uni.edu -password secreto
//	residencia whoami
//	residencia logout
//
// Records (news, assemblies, disciplinary, reports):
//
//	residencia news list
//	residencia news create -title "Corte de agua" -content "Mañana de 8 a 12" -scope floor -floor 3
//	residencia news edit -id n1 -title "Corte de agua (actualizado)"
//	residencia news delete -id n1
//	residencia assemblies status -id a1 -action postpone -reason "Sin quórum" -new-date 2026-11-02
//	residencia disciplinary list -status Activa
//	residencia disciplinary status -id d1 -action resolve
//	residencia reports list -resident u7
//	residencia reports status -id r1 -action complete
//
// Controls the role may not use fail before any request is sent. Deletes
// ask for confirmation on stdin unless -yes is given.
//
// Overview:
//
//	residencia dashboard
//	residencia search -query asamblea
//	residencia watch -schedule "@every 30s"
//
// # Configuration
//
// Settings come from config.LoadConfig:
//
//	export RESIDENCIA_API_URL="https://api.residencia.example"
//	export RESIDENCIA_SESSION_BACKEND=redis
//	export RESIDENCIA_REDIS_URL="redis://localhost:6379/0"
//
// When a backend call answers 401 the stored session is cleared and the
// command asks the user to log in again.
package cli
