package domain

// DefaultMetadataSystemPrompt is the system message for metadata completion.
const DefaultMetadataSystemPrompt = "Jesteś ekspertem od metadanych dokumentów, Twoim zadaniem jest generowanie metadanych na podstawie tekstów."

// DefaultMetadataUserPrompt asks the model to fill the blank fields of a
// metadata record. Placeholders: record JSON, document text.
const DefaultMetadataUserPrompt = `Uzupełnij brakujące lub puste pola w poniższym obiekcie metadata.json na podstawie przekazanego tekstu dokumentu.
Wypełnij TYLKO te pola, które są puste lub zerowe:
- document.title: znajdź tytuł dokumentu, jeśli nie istnieje w tekście, wygeneruj najbardziej adekwatny do treści tytuł;
- document.sections: znajdź sekcje dokumentu, jeśli nie są jawne, wskaż logiczne sekcje wywnioskowane z tekstu;
- document.authors: podaj autora(ów) jeśli znajdziesz, w przeciwnym wypadku wpisz brak;
- document.createdDate: podaj datę utworzenia jeśli widoczna, w przeciwnym razie wpisz brak;
- textData.summary: wygeneruj syntetyczne podsumowanie dokumentu (zawierające kluczowe informacje);
- textData.keywords: znajdź 5 słów kluczowych najważniejszych dla treści;
- textData.keywordSynonyms: dla każdego słowa kluczowego podaj do 3 kontekstowych synonimów lub najczęstsze odmiany słowa kluczowego;

WAŻNE:
- Nie zmieniaj innych pól w obiekcie. Jeśli pole jest już wypełnione, pozostaw je bez zmian.
- Nie zmieniaj struktury kluczy i kolejności pól.
- Jeśli nie możesz znaleźć danej informacji, pozostaw pole puste.
- Odpowiedz wyłącznie poprawnym JSON-em, bez bloków markdown i bez żadnego tekstu przed ani po.

Oto szablon metadata.json do uzupełnienia:
---
%s
---

Oto tekst dokumentu do analizy:
---
%s
---
`
