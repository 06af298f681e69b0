package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jung-kurt/gofpdf/v2"
)

// InvoiceService turns a sale into a numbered invoice and renders it as a
// PDF. One invoice per sale; regenerating returns the existing record.
type InvoiceService interface {
	Generate(ctx context.Context, userID, saleID int) (*Invoice, error)
	GetBySale(ctx context.Context, saleID int) (*Invoice, error)
	GetByNumber(ctx context.Context, userID int, invoiceNumber string) (*Invoice, error)
	RenderPDF(ctx context.Context, userID, saleID int) ([]byte, error)
}

type invoiceService struct {
	pool  *pgxpool.Pool
	sales SaleService
}

func NewInvoiceService(pool *pgxpool.Pool, sales SaleService) InvoiceService {
	return &invoiceService{pool: pool, sales: sales}
}

func (s *invoiceService) Generate(ctx context.Context, userID, saleID int) (*Invoice, error) {
	sale, err := s.sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.UserID != userID {
		return nil, fmt.Errorf("%w: sale %d", ErrNotFound, saleID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := s.getBySaleTx(ctx, tx, saleID)
	if err == nil {
		existing.Sale = sale
		return existing, tx.Commit(ctx)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	n, err := nextSequence(ctx, tx, userID, "invoice")
	if err != nil {
		return nil, err
	}

	invoice := Invoice{
		InvoiceNumber:  fmt.Sprintf("INV-%03d", n),
		SaleID:         saleID,
		InvoiceDate:    sale.SaleDate,
		PaymentDueDate: sale.PaymentDueDate,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (invoice_number, sale_id, invoice_date, payment_due_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, generated_at
	`, invoice.InvoiceNumber, invoice.SaleID, invoice.InvoiceDate, invoice.PaymentDueDate).
		Scan(&invoice.ID, &invoice.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice: %w", err)
	}
	invoice.Sale = sale
	return &invoice, nil
}

func (s *invoiceService) GetBySale(ctx context.Context, saleID int) (*Invoice, error) {
	return s.getBySaleTx(ctx, s.pool, saleID)
}

func (s *invoiceService) GetByNumber(ctx context.Context, userID int, invoiceNumber string) (*Invoice, error) {
	var inv Invoice
	err := s.pool.QueryRow(ctx, `
		SELECT i.id, i.invoice_number, i.sale_id, i.invoice_date, i.payment_due_date, i.generated_at
		FROM invoices i JOIN sales s ON s.id = i.sale_id
		WHERE s.user_id = $1 AND i.invoice_number = $2
	`, userID, invoiceNumber).Scan(&inv.ID, &inv.InvoiceNumber, &inv.SaleID,
		&inv.InvoiceDate, &inv.PaymentDueDate, &inv.GeneratedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %s", ErrNotFound, invoiceNumber)
		}
		return nil, fmt.Errorf("failed to fetch invoice %s: %w", invoiceNumber, err)
	}
	return &inv, nil
}

func (s *invoiceService) getBySaleTx(ctx context.Context, q pgxQuerier, saleID int) (*Invoice, error) {
	var inv Invoice
	err := q.QueryRow(ctx, `
		SELECT id, invoice_number, sale_id, invoice_date, payment_due_date, generated_at
		FROM invoices WHERE sale_id = $1
	`, saleID).Scan(&inv.ID, &inv.InvoiceNumber, &inv.SaleID, &inv.InvoiceDate,
		&inv.PaymentDueDate, &inv.GeneratedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice for sale %d", ErrNotFound, saleID)
		}
		return nil, fmt.Errorf("failed to fetch invoice for sale %d: %w", saleID, err)
	}
	return &inv, nil
}

// RenderPDF generates (or reuses) the invoice for the sale and renders it.
func (s *invoiceService) RenderPDF(ctx context.Context, userID, saleID int) ([]byte, error) {
	invoice, err := s.Generate(ctx, userID, saleID)
	if err != nil {
		return nil, err
	}
	sale := invoice.Sale

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "INVOICE", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Invoice No: %s", invoice.InvoiceNumber), "", 1, "C", false, 0, "")
	pdf.CellFormat(190, 6, fmt.Sprintf("Date: %s", invoice.InvoiceDate.Format("02-Jan-2006")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFillColor(230, 230, 230)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Billed To", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, fmt.Sprintf("Customer: %s", sale.CustomerName), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Sale No: %s", sale.SaleNumber), "RB", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 7, "Item", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Unit Price", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Amount", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, item := range sale.Items {
		pdf.CellFormat(90, 6, item.ProductName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, item.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, item.TotalPrice.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(150, 7, "Total", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 7, sale.TotalAmount.StringFixed(2), "1", 1, "R", false, 0, "")
	pdf.CellFormat(150, 7, "Paid", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 7, sale.PaidAmount.StringFixed(2), "1", 1, "R", false, 0, "")
	pdf.CellFormat(150, 7, "Balance Due", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 7, sale.RemainingAmount.StringFixed(2), "1", 1, "R", false, 0, "")

	if due := invoice.PaymentDueDate; due != nil && !sale.IsPaid {
		pdf.Ln(4)
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(190, 6, fmt.Sprintf("Payment due by %s", due.Format("02-Jan-2006")), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}
