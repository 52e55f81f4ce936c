package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/luca-patrignani/energy-ledger/escrow"
	"github.com/luca-patrignani/energy-ledger/ledger"
)

func statusLabel(s escrow.Status) string {
	switch s {
	case escrow.Completed:
		return pterm.LightGreen(string(s))
	case escrow.Penalized:
		return pterm.LightRed(string(s))
	case escrow.InEscrow:
		return pterm.LightYellow(string(s))
	default:
		return pterm.LightCyan(string(s))
	}
}

func contractPanel(s escrow.State) string {
	pbox := pterm.DefaultBox.WithLeftPadding(4).WithRightPadding(4).WithTopPadding(1).WithBottomPadding(1)
	return pbox.WithTitle(pterm.LightCyan(s.Producer.String())).WithTitleTopLeft().Sprintf(
		"Consumer: %s\nEnergy: %.2f units\nBase price: %.4f\nCurrent price: %.4f\n",
		s.Consumer, s.EnergyAmount, s.BasePricePerUnit, s.PricePerUnit)
}

func settlementPanel(s escrow.State) string {
	pbox := pterm.DefaultBox.WithLeftPadding(4).WithRightPadding(4).WithTopPadding(1).WithBottomPadding(1)
	return pbox.WithTitle("Settlement").WithTitleTopLeft().Sprintf(
		"Status: %s\nEscrow: %.2f\nTotal price: %.2f\nDelivery: %s\nGrace: %s (%s mode)\n",
		statusLabel(s.Status), s.Escrow, s.TotalPrice,
		s.DeliveryTime.Format(time.TimeOnly), s.GracePeriod, s.Mode)
}

func printContract(s escrow.State, title string) {
	pterm.DefaultSection.Println(title)
	pterm.DefaultPanel.WithPanels([][]pterm.Panel{
		{{Data: contractPanel(s)}, {Data: settlementPanel(s)}},
	}).Render()
}

func shortHash(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:16] + "…"
}

func transactionLine(tx ledger.Transaction) string {
	return fmt.Sprintf("%s → %s: %.2f", tx.From, tx.To, tx.Amount)
}

func chainTable(blocks []ledger.Block) pterm.TableData {
	data := pterm.TableData{{"Index", "Timestamp", "Nonce", "Previous", "Hash", "Transactions"}}
	for _, b := range blocks {
		txs := ""
		for i, tx := range b.Transactions {
			if i > 0 {
				txs += "\n"
			}
			txs += transactionLine(tx)
		}
		if txs == "" {
			txs = "-"
		}
		sec := int64(b.Timestamp)
		ts := time.Unix(sec, int64((b.Timestamp-float64(sec))*1e9)).Format(time.TimeOnly)
		data = append(data, []string{
			strconv.FormatUint(b.Index, 10),
			ts,
			strconv.FormatUint(b.Nonce, 10),
			shortHash(b.PreviousHash),
			shortHash(b.Hash),
			txs,
		})
	}
	return data
}

func printChain(blocks []ledger.Block) error {
	pterm.DefaultSection.Println("BLOCKCHAIN")
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithRowSeparator("-").WithData(chainTable(blocks)).Render()
}

func printHistory(p ledger.Party, txs []ledger.Transaction) error {
	pterm.DefaultSection.Printfln("HISTORY OF %s", p)
	items := make([]pterm.BulletListItem, 0, len(txs))
	for _, tx := range txs {
		items = append(items, pterm.BulletListItem{Level: 0, Text: transactionLine(tx)})
	}
	return pterm.DefaultBulletList.WithItems(items).Render()
}
