package reminder

import (
	"fmt"
	"strings"

	"tokokasbon/backend/internal/domain"
)

// ComposeMessage renders the WhatsApp body for a reminder. The wording
// follows the customer's risk tier: gentle for low, firmer for high.
func ComposeMessage(customer domain.Customer, loan domain.Loan, reminderType string) string {
	amount := formatRupiah(loan.RemainingCents)
	due := loan.DueDate.Format("02-01-2006")

	var body string
	switch reminderType {
	case domain.ReminderBeforeDue:
		body = fmt.Sprintf("Halo %s, kasbon Anda sebesar %s akan jatuh tempo pada %s.", customer.Name, amount, due)
	case domain.ReminderOnDue:
		body = fmt.Sprintf("Halo %s, kasbon Anda sebesar %s jatuh tempo hari ini (%s).", customer.Name, amount, due)
	case domain.ReminderOverdue:
		body = fmt.Sprintf("Halo %s, kasbon Anda sebesar %s telah melewati jatuh tempo %s.", customer.Name, amount, due)
	case domain.ReminderEscalation:
		body = fmt.Sprintf("PERHATIAN %s: kasbon Anda sebesar %s menunggak sejak %s. Segera hubungi toko untuk menyelesaikan pembayaran.", customer.Name, amount, due)
	default:
		body = fmt.Sprintf("Halo %s, sisa kasbon Anda adalah %s.", customer.Name, amount)
	}

	switch customer.RiskLevel {
	case domain.RiskHigh:
		if reminderType != domain.ReminderEscalation {
			body += " Mohon segera melakukan pembayaran."
		}
	case domain.RiskMedium:
		body += " Mohon diselesaikan sebelum tanggal tersebut."
	default:
		if reminderType == domain.ReminderBeforeDue || reminderType == domain.ReminderOnDue {
			body += " Terima kasih!"
		}
	}
	return body
}

func messageTitle(reminderType string) string {
	switch reminderType {
	case domain.ReminderBeforeDue:
		return "Pengingat Kasbon"
	case domain.ReminderOnDue:
		return "Kasbon Jatuh Tempo"
	case domain.ReminderOverdue:
		return "Tunggakan Kasbon"
	case domain.ReminderEscalation:
		return "Peringatan Tunggakan"
	default:
		return "Info Kasbon"
	}
}

// formatRupiah renders cents as "Rp12.500" with dot thousand separators.
func formatRupiah(cents int64) string {
	whole := cents / 100
	digits := fmt.Sprintf("%d", whole)

	var b strings.Builder
	b.WriteString("Rp")
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteString(".")
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteString(".")
		}
	}
	return b.String()
}
