package oracle

import (
	"fmt"
	"strings"
	"time"

	"juridico/internal/domain"
)

// Every SQL string sent to Oracle is assembled here. Dates are inlined as
// TO_DATE('DD/MM/YYYY') literals and text values are quote-escaped.

const fineSelect = `SELECT
	D.DESCRICAOINFRA,
	D.GRUPOINFRACAO,
	D.PONTUACAOINFRACAO,
	V.PREFIXOVEIC,
	M.*,
	A.COD_AGENTE_AUTUADOR AS "AGENTE_CODIGO",
	A.DESC_AGENTE_AUTUADOR AS "AGENTE_DESCRICAO",
	A.MATRICULAFISCAL AS "AGENTE_MATRICULA_FISCAL"
FROM DVS_MULTA M,
	DVS_INFRACAO D,
	FRT_CADVEICULOS V,
	GLOBUS.DVS_AGENTE_AUTUADOR A
WHERE M.CODIGOVEIC = V.CODIGOVEIC (+)
	AND M.CODIGOINFRA = D.CODIGOINFRA
	AND M.COD_AGENTE_AUTUADOR = A.COD_AGENTE_AUTUADOR (+)
	AND V.CODIGOEMPRESA = %d`

func dateLiteral(t time.Time) string {
	return fmt.Sprintf("TO_DATE('%s', 'DD/MM/YYYY')", t.Format("02/01/2006"))
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FinesByIssuanceRange selects every fine of company issued on a day of r.
func FinesByIssuanceRange(company int, r domain.DateRange) string {
	return fmt.Sprintf(fineSelect, company) +
		"\n\tAND M.DATAEMISSAOMULTA >= " + dateLiteral(r.Inicio) +
		"\n\tAND M.DATAEMISSAOMULTA < " + dateLiteral(r.Until()) +
		"\nORDER BY M.DATAEMISSAOMULTA DESC, V.PREFIXOVEIC"
}

// FineByNumber selects a single fine.
func FineByNumber(company int, numero string) string {
	return fmt.Sprintf(fineSelect, company) + "\n\tAND M.NUMEROAIMULTA = " + quote(numero)
}

// FleetSnapshot selects the company's vehicles in the known depots.
func FleetSnapshot(company int, includeInactive bool) string {
	var names, codes strings.Builder
	for i, g := range domain.Garagens {
		fmt.Fprintf(&names, "\n\t\tWHEN C.CODIGOGA = %d THEN %s", g.Codigo, quote(g.Nome))
		if i > 0 {
			codes.WriteString(", ")
		}
		fmt.Fprintf(&codes, "%d", g.Codigo)
	}
	cond := "C.CONDICAOVEIC = 'A'"
	if includeInactive {
		cond = "C.CONDICAOVEIC IN ('A', 'I')"
	}
	return fmt.Sprintf(`SELECT
	C.CODIGOEMPRESA AS "CODIGOEMPRESA",
	C.PREFIXOVEIC AS "PREFIXOVEICULO",
	REPLACE(REPLACE(C.PLACAATUALVEIC, '-', ''), ' ', '') AS "PLACAVEICULO",
	C.CODIGOGA AS "CODIGOGARAGEM",
	CASE%s
		ELSE 'DESCONHECIDA'
	END AS "NOMEGARAGEM",
	CASE
		WHEN T.CODIGOTPFROTA = 3 THEN 'CONVENCIONAL'
		WHEN T.CODIGOTPFROTA = 4 THEN 'ART. PISO ALTO'
		WHEN T.CODIGOTPFROTA = 9 THEN 'MINI-ÔNIBUS'
		WHEN T.CODIGOTPFROTA IN (10, 11, 14) THEN 'ART. PISO BAIXO'
		WHEN T.CODIGOTPFROTA = 12 THEN 'PADRON'
		WHEN T.CODIGOTPFROTA = 13 THEN 'SUPER PADRON'
		ELSE T.DESCRICAOTPFROTA
	END AS "TIPOFROTADESCRICAO",
	C.DTINICIOUTILVEIC AS "DATAINICIOUTILIZACAO",
	CASE WHEN C.CONDICAOVEIC = 'A' THEN 'ATIVO' ELSE 'INATIVO' END AS "SITUACAO"
FROM FRT_CADVEICULOS C,
	FRT_TIPODEFROTA T
WHERE C.CODIGOTPFROTA = T.CODIGOTPFROTA (+)
	AND %s
	AND C.CODIGOGA IN (%s)
	AND C.CODIGOEMPRESA = %d
ORDER BY C.CODIGOGA, C.PREFIXOVEIC`, names.String(), cond, codes.String(), company)
}
