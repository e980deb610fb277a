// Package application contém os casos de uso do controle de cota.
//
// Ele depende apenas do pacote domain e não conhece Redis nem SQL.
// Ex.: Service.CanUse(ctx, user) responde se o usuário ainda pode consumir
// uma unidade do serviço na janela vigente.
package application
