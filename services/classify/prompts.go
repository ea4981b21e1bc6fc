// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import (
	"fmt"
	"strings"
)

const extractSystemPrompt = `You are an intelligent financial data extraction assistant. You are skilled in extracting structured financial transaction data from unstructured text, such as emails or OCR-processed documents.`

const categorizeSystemPrompt = `You are an expert financial transaction categorization assistant. You are skilled in classifying transactions into predefined categories based on the extracted data.`

// extractPromptTemplate asks for the entity object. The company name
// anchors the Debit/Credit perspective; %[1]s is the company, %[2]s the
// raw text.
const extractPromptTemplate = `Given the following raw text from a document and OCR-processed attachments, extract the following fields accurately as JSON:

- "text": a short description of the transaction
- "date": transaction date in YYYY-MM-DD format (if missing, use "None")
- "amount": transaction amount as a float (0.00 if missing)
- "currency": 3-letter ISO currency code (e.g., USD, SGD, if missing, use "None")
- "vendor": merchant or party involved for transaction with %[1]s (if missing, use "None")
- "ttype": "Debit" or "Credit" from %[1]s's perspective:
* "Debit" = Money going OUT of %[1]s (expenses, payments made, purchases)
* "Credit" = Money coming INTO %[1]s (income, payments received, refunds)
- "referenceid": string of unique transaction or invoice identifier (if missing, use "None")

EXAMPLES:

Example 1 - Invoice received (money going out):
Raw text: "Invoice #INV-2024-001 from Office Supplies Co. for 250.00 EUR dated 2024-03-15. Payment due for office equipment purchase."
JSON: {"text": "Office equipment purchase", "date": "2024-03-15", "amount": 250.00, "currency": "EUR", "vendor": "Office Supplies Co.", "ttype": "Debit", "referenceid": "INV-2024-001"}

Example 2 - Payment received (money coming in):
Raw text: "Payment received from Client ABC to %[1]s for services rendered. Amount: SGD 1,500.00. Reference: PAY-2024-445. Date: 2024-03-20"
JSON: {"text": "Payment received for services", "date": "2024-03-20", "amount": 1500.00, "currency": "SGD", "vendor": "Client ABC", "ttype": "Credit", "referenceid": "PAY-2024-445"}

Example 3 - Refund received (money coming in):
Raw text: "Refund processed by Software Provider Ltd. to %[1]s. Amount: USD 89.99. Refund ID: REF-789. Date: 2024-03-18"
JSON: {"text": "Refund from software provider", "date": "2024-03-18", "amount": 89.99, "currency": "USD", "vendor": "Software Provider Ltd.", "ttype": "Credit", "referenceid": "REF-789"}

Example 4 - Expense payment (money going out):
Raw text: "Monthly subscription fee charged by Cloud Services Inc. $45.00 USD. Transaction ID: TXN-456789. Date: 2024-03-25"
JSON: {"text": "Monthly subscription fee", "date": "2024-03-25", "amount": 45.00, "currency": "USD", "vendor": "Cloud Services Inc.", "ttype": "Debit", "referenceid": "TXN-456789"}

IMPORTANT: Return ONLY the JSON object without any explanation, formatting, or additional text. Do not include any markdown formatting or explanatory text.

Raw text from document and OCR attachments:
"""
%[2]s
"""

JSON:`

// categorizePromptHead and categorizePromptTail wrap the transaction
// text in a fenced block; the fence cannot live inside a raw literal.
const categorizePromptHead = `# Expense Classification Prompt

You are an expert expense categorization assistant. Your task is to classify transaction data into one of the following categories based on the description, merchant, and amount:

## Categories:
- **Meals & Entertainment**: Restaurants, bars, catering, team meals, client dinners, entertainment venues
- **Transport**: Uber, taxi, gas, parking, public transit, car rentals, vehicle maintenance
- **SaaS**: Software subscriptions, cloud services, online tools, digital platforms
- **Travel**: Hotels, flights, airfare, accommodation, travel booking sites
- **Office**: Office supplies, equipment, furniture, utilities, rent, phone bills
- **Other**: Any expense that doesn't clearly fit the above categories

## Instructions:
1. Analyze the transaction description, merchant name, and amount
2. Consider the business context and typical expense patterns
3. Choose the most appropriate category
4. Return only a JSON object with a "label" field

## Examples:

**Input:** "UBER TRIP - SAN FRANCISCO, $23.45"
**Output:** {"label": "Transport"}

**Input:** "STARBUCKS COFFEE - DOWNTOWN, $8.99"
**Output:** {"label": "Meals & Entertainment"}

**Input:** "ADOBE CREATIVE CLOUD SUBSCRIPTION, $52.99"
**Output:** {"label": "SaaS"}

**Input:** "MARRIOTT HOTEL - CHICAGO, $189.00"
**Output:** {"label": "Travel"}

**Input:** "STAPLES OFFICE SUPPLIES, $45.67"
**Output:** {"label": "Office"}

**Input:** "AMAZON WEB SERVICES, $127.83"
**Output:** {"label": "SaaS"}

**Input:** "SHELL GAS STATION, $65.22"
**Output:** {"label": "Transport"}

**Input:** "BLUE BOTTLE COFFEE - CLIENT MEETING, $34.50"
**Output:** {"label": "Meals & Entertainment"}

**Input:** "UNITED AIRLINES - FLIGHT TO NYC, $456.00"
**Output:** {"label": "Travel"}

**Input:** "VERIZON BUSINESS - OFFICE PHONE, $89.99"
**Output:** {"label": "Office"}

**Input:** "MICROSOFT OFFICE 365, $15.00"
**Output:** {"label": "SaaS"}

**Input:** "WALMART - MISCELLANEOUS ITEMS, $23.45"
**Output:** {"label": "Other"}

## Task:
Classify the following transaction data:

`

const categorizePromptTail = `

Return only a JSON object with a "label" field containing the category.`

const fence = "```"

// buildExtractPrompt renders the stage-1 user prompt for company and
// document text.
func buildExtractPrompt(company, text string) string {
	return fmt.Sprintf(extractPromptTemplate, company, text)
}

// buildCategorizePrompt renders the stage-2 user prompt around the
// document text.
func buildCategorizePrompt(text string) string {
	var b strings.Builder
	b.WriteString(categorizePromptHead)
	b.WriteString(fence)
	b.WriteString("\n")
	b.WriteString(text)
	b.WriteString("\n")
	b.WriteString(fence)
	b.WriteString(categorizePromptTail)
	return b.String()
}
